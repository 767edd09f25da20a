// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
)

// ListEvents returns recent audit events, newest first, optionally
// filtered by type.
func ListEvents(events *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 50)

		var (
			out []datatypes.Event
			err error
		)
		if eventType := c.Query("event_type"); eventType != "" {
			t := datatypes.EventType(eventType)
			if !datatypes.KnownEventType(t) {
				respondKind(c, http.StatusBadRequest, kindBadInput,
					"unknown event type "+eventType)
				return
			}
			out, err = events.ByType(t, limit)
		} else {
			out, err = events.Recent(limit)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if out == nil {
			out = []datatypes.Event{}
		}
		c.JSON(http.StatusOK, gin.H{"events": out, "total": len(out)})
	}
}
