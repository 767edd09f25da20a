// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/mlmodel"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
)

// maxUploadBytes bounds one dermatoscopic image upload.
const maxUploadBytes = 20 << 20

// CheckImage is the quality gate: score the upload for blur, run the
// classifier when it passes, persist the image, and append an image
// entry to the caller's ledger either way.
func CheckImage(cfg *config.Settings, cases *casestore.Store,
	classifier mlmodel.Classifier, blur mlmodel.BlurScorer,
	metrics *observability.Metrics,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "multipart field 'file' is required")
			return
		}
		if fileHeader.Size > maxUploadBytes {
			respondKind(c, http.StatusBadRequest, kindBadInput, "image exceeds the upload size limit")
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		file.Close()
		if err != nil {
			respondError(c, err)
			return
		}

		caseID := strings.TrimSpace(c.PostForm("case_id"))
		imageID := uuid.NewString()

		blurScore, err := blur.Score(data)
		if err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput,
				fmt.Sprintf("unreadable image: %v", err))
			return
		}

		entry := datatypes.LedgerEntry{
			CaseID:    caseID,
			ImageID:   imageID,
			BlurScore: blurScore,
			UserID:    user.UserID,
			UserRole:  user.Role,
		}

		if blurScore < cfg.BlurThreshold {
			entry.Status = "fail"
			if err := cases.RecordImage(user.UserID, entry); err != nil {
				respondError(c, err)
				return
			}
			metrics.ObserveUpload("fail")
			c.JSON(http.StatusOK, gin.H{
				"status":     "fail",
				"message":    "image is too blurry, please retake",
				"blur_score": blurScore,
				"image_id":   imageID,
				"case_id":    caseID,
				"user_id":    user.UserID,
				"user_role":  user.Role,
			})
			return
		}

		predictions, err := classifier.Predict(c.Request.Context(), data)
		if err != nil {
			respondKind(c, http.StatusServiceUnavailable, kindUnavailable,
				"classifier unavailable: "+err.Error())
			return
		}

		if _, err := cases.SaveImage(user.UserID, imageID, data); err != nil {
			respondError(c, err)
			return
		}
		entry.Status = "success"
		entry.Predictions = predictions
		if err := cases.RecordImage(user.UserID, entry); err != nil {
			respondError(c, err)
			return
		}
		metrics.ObserveUpload("success")

		message := "image accepted"
		if len(predictions) > 0 && predictions[0].Confidence < cfg.ConfThreshold {
			message = "image accepted; prediction confidence is low"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "success",
			"message":     message,
			"blur_score":  blurScore,
			"predictions": predictions,
			"image_id":    imageID,
			"case_id":     caseID,
			"user_id":     user.UserID,
			"user_role":   user.Role,
		})
	}
}

// GetImage serves a stored image, transparently decrypting when
// encryption is on. Owners read their own images; doctors and admins
// read anyone's.
func GetImage(cases *casestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		ownerID := c.Param("userId")
		imageID := strings.TrimSuffix(strings.TrimSuffix(c.Param("imageId"), ".jpg"), ".bin")

		if ownerID != user.UserID && !user.IsDoctor() {
			respondKind(c, http.StatusForbidden, kindForbidden,
				"role "+user.Role+" may not read other users' images")
			return
		}

		data, err := cases.LoadImage(ownerID, imageID)
		if err != nil {
			respondKind(c, http.StatusNotFound, kindNotFound, "image not found")
			return
		}
		c.Data(http.StatusOK, "image/jpeg", data)
	}
}
