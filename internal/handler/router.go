package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/config"
	"github.com/tgo/mindvault/internal/ingest"
	"github.com/tgo/mindvault/internal/middleware"
	"github.com/tgo/mindvault/internal/pkg/jwt"
	"github.com/tgo/mindvault/internal/repository"
	"github.com/tgo/mindvault/internal/service"
)

// Services bundles the wired application services the router exposes. Built
// once in Build and shared with the coordinator lifecycle in main.
type Services struct {
	Libraries   *service.LibraryService
	Permissions *service.PermissionService
	Documents   *service.DocumentService
	Chunks      *service.ChunkService
	Files       *service.FileService
	Coordinator *ingest.Coordinator
	Sweeper     *ingest.StallSweeper
	Requeuer    *ingest.PendingRequeuer
}

// Build constructs repositories, services and the ingestion coordinator.
func Build(cfg *config.Config, db *gorm.DB, cache service.PrivilegeCache) (*Services, error) {
	libraryRepo := repository.NewLibraryRepository(db)
	grantRepo := repository.NewGrantRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	fileRepo := repository.NewFileRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	embeddingSvc := service.NewEmbeddingService(
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingBaseURL,
		cfg.EmbeddingModel,
		cfg.EmbeddingDimensions,
	)

	permissionSvc := service.NewPermissionService(grantRepo, directoryRepo, libraryRepo, cache)
	librarySvc := service.NewLibraryService(libraryRepo, grantRepo, documentRepo, permissionSvc)
	fileSvc := service.NewFileService(fileRepo, cfg.StoragePath)
	chunkSvc := service.NewChunkService(chunkRepo, documentRepo, libraryRepo, permissionSvc, embeddingSvc)

	processor := ingest.NewTextProcessor(fileRepo, embeddingSvc)
	coordinator, err := ingest.NewCoordinator(documentRepo, processor,
		ingest.WithPoolSize(cfg.WorkerPoolSize),
		ingest.WithLeaseTTL(cfg.LeaseTTL()),
		ingest.WithHeartbeatInterval(cfg.HeartbeatInterval()),
		ingest.WithProcessingTimeout(cfg.ProcessingTimeout()),
	)
	if err != nil {
		return nil, err
	}

	documentSvc := service.NewDocumentService(documentRepo, libraryRepo, fileRepo, permissionSvc, coordinator)

	return &Services{
		Libraries:   librarySvc,
		Permissions: permissionSvc,
		Documents:   documentSvc,
		Chunks:      chunkSvc,
		Files:       fileSvc,
		Coordinator: coordinator,
		Sweeper:     ingest.NewStallSweeper(documentRepo),
		Requeuer:    ingest.NewPendingRequeuer(documentRepo, coordinator),
	}, nil
}

// SetupRouter wires the HTTP surface.
func SetupRouter(cfg *config.Config, db *gorm.DB, svcs *Services) *gin.Engine {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.RequestID())

	r.GET("/health", healthCheck)
	r.GET("/ready", readinessCheck)
	r.GET("/live", livenessCheck)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":      "MindVault Knowledge Service",
			"version":      "1.0.0",
			"status":       "running",
			"health_check": "/health",
		})
	})

	jwtManager := jwt.NewManager(cfg.SecretKey, cfg.AccessTokenExpireMin)
	auth := middleware.NewAuthMiddleware(jwtManager, repository.NewDirectoryRepository(db), cfg.IsDevelopment())

	libraryHandler := NewLibraryHandler(svcs.Libraries, svcs.Chunks)
	permissionHandler := NewPermissionHandler(svcs.Permissions)
	documentHandler := NewDocumentHandler(svcs.Documents, svcs.Chunks)
	fileHandler := NewFileHandler(svcs.Files, cfg.MaxUploadSize)

	v1 := r.Group("/v1")
	v1.Use(auth.JWTAuth())
	{
		libraries := v1.Group("/libraries")
		{
			libraries.GET("", libraryHandler.List)
			libraries.POST("", libraryHandler.Create)
			libraries.GET("/:id", libraryHandler.Get)
			libraries.PUT("/:id", libraryHandler.Update)
			libraries.DELETE("/:id", libraryHandler.Delete)
			libraries.POST("/:id/enable", libraryHandler.Enable)
			libraries.POST("/:id/disable", libraryHandler.Disable)
			libraries.POST("/:id/search", libraryHandler.Search)
		}

		grants := v1.Group("/grants")
		{
			grants.GET("", permissionHandler.List)
			grants.POST("", permissionHandler.Create)
			grants.POST("/batch-associate", permissionHandler.BatchAssociate)
			grants.POST("/status", permissionHandler.SetStatus)
			grants.DELETE("", permissionHandler.Delete)
		}

		documents := v1.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.POST("", documentHandler.Submit)
			documents.GET("/:id", documentHandler.Get)
			documents.GET("/:id/chunks", documentHandler.ListChunks)
			documents.DELETE("", documentHandler.Delete)
		}

		files := v1.Group("/files")
		{
			files.POST("", fileHandler.Upload)
			files.GET("/lookup", fileHandler.Lookup)
			files.GET("/:id", fileHandler.Get)
			files.GET("/:id/download", fileHandler.Download)
		}
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "mindvault",
	})
}

func readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
