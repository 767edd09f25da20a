// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the HTTP surface: middleware order, role gates,
// and every endpoint of the triage backend.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/handlers"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/labelpool"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/middleware"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/mlmodel"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/registry"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/retrain"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/trainconfig"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/users"
)

// Deps carries every handle the handlers close over. Constructed once
// in main and treated as read-only afterwards.
type Deps struct {
	Cfg     *config.Settings
	Logger  *logging.Logger
	Metrics *observability.Metrics

	Users  *users.Store
	Tokens *users.TokenIssuer

	Cases   *casestore.Store
	Pool    *labelpool.Pool
	Events  *eventlog.Log
	Configs *trainconfig.Store

	Registry *registry.Registry
	Promoter *promote.Promoter
	Worker   *retrain.Worker

	Classifier mlmodel.Classifier
	Blur       mlmodel.BlurScorer
}

// SetupRoutes registers all endpoints on the router.
func SetupRoutes(router *gin.Engine, d *Deps) {
	router.Use(middleware.CORS(d.Cfg.AllowedOrigins))
	if d.Metrics != nil {
		router.Use(d.Metrics.InstrumentHTTP())
	}

	router.GET("/health", handlers.HealthCheck(d.Promoter))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("", middleware.RequireAPIKey(d.Cfg.APIKey))
	api.POST("/auth/login", handlers.Login(d.Users, d.Tokens))

	authed := api.Group("", middleware.RequireUser(d.Tokens))
	{
		authed.POST("/cases/next-id", handlers.NextCaseID(d.Cases))
		authed.POST("/cases/release-id", handlers.ReleaseCaseID(d.Cases))
		authed.POST("/check-image",
			handlers.CheckImage(d.Cfg, d.Cases, d.Classifier, d.Blur, d.Metrics))

		authed.GET("/cases", handlers.ListCases(d.Cases))
		authed.POST("/cases", handlers.SubmitCase(d.Cases, d.Metrics))
		authed.PUT("/cases/:caseId", handlers.UpdateCase(d.Cases))
		authed.POST("/cases/uncertain", handlers.SubmitUncertain(d.Cases, d.Metrics))
		authed.POST("/cases/reject", handlers.SubmitReject(d.Cases, d.Metrics))

		authed.POST("/active-learning/candidates", handlers.Candidates(d.Cfg, d.Cases))

		if d.Cfg.ServeImages {
			authed.GET("/images/:userId/:imageId", handlers.GetImage(d.Cases))
		}

		// Review actions: GPs submit cases but never correct them.
		review := authed.Group("",
			middleware.RequireRole(datatypes.RoleDoctor, datatypes.RoleAdmin))
		{
			review.POST("/cases/:caseId/label",
				handlers.SubmitLabel(d.Cfg, d.Cases, d.Pool, d.Events, d.Metrics, d.Logger))
			review.POST("/cases/:caseId/annotations",
				handlers.SubmitAnnotations(d.Cfg, d.Cases, d.Pool, d.Events, d.Metrics, d.Logger))
		}

		admin := authed.Group("/admin", middleware.RequireAdmin())
		{
			admin.GET("/training-config", handlers.GetTrainingConfig(d.Configs))
			admin.POST("/training-config",
				handlers.UpdateTrainingConfig(d.Configs, d.Events, d.Logger))

			admin.GET("/models", handlers.ListModels(d.Registry))
			admin.GET("/models/production", handlers.ProductionModel(d.Registry))
			admin.GET("/models/active-inference", handlers.ActiveInference(d.Registry))
			admin.POST("/models/active-inference", handlers.SetActiveInference(d.Registry))
			admin.POST("/models/:versionId/promote",
				handlers.PromoteModel(d.Promoter, d.Metrics))
			admin.POST("/models/:versionId/rollback",
				handlers.RollbackModel(d.Promoter, d.Metrics))
			admin.GET("/models/:versionId/training-log",
				handlers.ModelTrainingLog(d.Registry))
			admin.DELETE("/models/:versionId", handlers.DeleteModel(d.Registry))

			admin.POST("/retrain/trigger",
				handlers.TriggerRetrain(d.Worker, d.Metrics))
			admin.GET("/retrain/status", handlers.RetrainStatus(d.Worker))

			admin.GET("/events", handlers.ListEvents(d.Events))
			admin.GET("/labels/count", handlers.LabelCount(d.Cfg, d.Pool))
			admin.GET("/labels", handlers.ListLabels(d.Cfg, d.Pool))
		}

		// Aliases kept for clients written against the first backend.
		legacy := authed.Group("/model", middleware.RequireAdmin())
		{
			legacy.POST("/retrain",
				handlers.TriggerRetrain(d.Worker, d.Metrics))
			legacy.GET("/retrain-status", handlers.RetrainStatus(d.Worker))
		}
	}
}
