package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/jobs"
	"anoa.com/memberclub/internal/middleware"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/metrics"
	"anoa.com/memberclub/pkg/payment"

	adminHttp "anoa.com/memberclub/internal/modules/admin/delivery/http"
	adminService "anoa.com/memberclub/internal/modules/admin/service"

	inviteHttp "anoa.com/memberclub/internal/modules/invite/delivery/http"
	inviteRepo "anoa.com/memberclub/internal/modules/invite/repository"
	inviteService "anoa.com/memberclub/internal/modules/invite/service"

	ledgerHttp "anoa.com/memberclub/internal/modules/ledger/delivery/http"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"

	membershipHttp "anoa.com/memberclub/internal/modules/membership/delivery/http"
	memberRepo "anoa.com/memberclub/internal/modules/membership/repository"
	membershipService "anoa.com/memberclub/internal/modules/membership/service"

	notiHttp "anoa.com/memberclub/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/memberclub/internal/modules/notification/repository"
	notifService "anoa.com/memberclub/internal/modules/notification/service"

	questHttp "anoa.com/memberclub/internal/modules/quest/delivery/http"
	questRepo "anoa.com/memberclub/internal/modules/quest/repository"
	questService "anoa.com/memberclub/internal/modules/quest/service"

	rewardService "anoa.com/memberclub/internal/modules/reward/service"

	searchHttp "anoa.com/memberclub/internal/modules/search/delivery/http"
	searchService "anoa.com/memberclub/internal/modules/search/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	scheduler   *jobs.Scheduler
	cfg         *config.Config
	log         *logger.Logger
}

// Dependencies lets callers swap the external collaborators. Nil fields are built from
// cfg.
type Dependencies struct {
	Payments    payment.StatusChecker
	MemberIndex searchService.MemberIndex
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, log *logger.Logger, deps Dependencies) (*Server, error) {
	ranks, err := ledgerService.NewRankTable(cfg.Rewards.Ranks)
	if err != nil {
		return nil, err
	}

	memberIndex := deps.MemberIndex
	if memberIndex == nil {
		memberIndex = newMemberIndex(cfg, log)
	}
	payments := deps.Payments
	if payments == nil {
		payments = newPaymentChecker(cfg, log)
	}

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient, log)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc)

	// Ledger and rewards
	ledgerRepository := ledgerRepo.NewLedgerRepository(db)
	ledgerSvc := ledgerService.NewLedgerService(ledgerRepository, ranks, log)
	ledgerHandler := ledgerHttp.NewLedgerHandler(ledgerSvc)
	issuer := rewardService.NewIssuer(ledgerRepository, ranks, cfg.Rewards, notificationSvc, log)

	// Quests
	questRepository := questRepo.NewQuestRepository(db)
	evaluator := questService.NewEvaluator(questRepository, issuer, log)
	questSvc := questService.NewQuestService(questRepository, issuer, log)
	questHandler := questHttp.NewQuestHandler(questSvc)

	// Membership and invites
	memberRepository := memberRepo.NewMemberRepository(db)
	profileSvc := membershipService.NewProfileService(memberRepository, ledgerSvc, evaluator, memberIndex, log)
	inviteSvc := inviteService.NewInviteService(inviteRepo.NewInviteRepository(db), profileSvc, redisClient, inviteService.Options{
		FailureLimit:  cfg.InviteFailureLimit,
		FailureWindow: cfg.InviteFailureWindow,
		IssueCooldown: cfg.InviteIssueCooldown,
	}, log)
	inviteHandler := inviteHttp.NewInviteHandler(inviteSvc)
	resolver := membershipService.NewResolver(memberRepository, inviteSvc, issuer, evaluator, payments, memberIndex, log)
	membershipHandler := membershipHttp.NewMembershipHandler(resolver, profileSvc)

	searchHandler := searchHttp.NewSearchHandler(memberIndex)

	adminSvc := adminService.NewAdminService(issuer, profileSvc, log)
	adminHandler := adminHttp.NewAdminHandler(adminSvc, profileSvc, inviteSvc, questSvc)

	scheduler := jobs.NewScheduler(log)
	if err := scheduler.Register(jobs.NewReconcileJob(ledgerSvc, cfg.ReconcileSchedule)); err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    log.Writer(),
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	s := &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		scheduler:   scheduler,
		cfg:         cfg,
		log:         log,
	}

	router.GET("/healthz", s.health)
	router.GET("/metrics", metrics.Handler())

	authMiddleware := middleware.NewAuthMiddleware(profileSvc, cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes (no auth required)
	api.GET("/invites/:code", inviteHandler.ValidateInvite)

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Admin routes
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.GET("/members", adminHandler.ListMembers)
			adminGroup.POST("/members/:id/awards", adminHandler.AwardPoints)
			adminGroup.POST("/members/:id/adjustments", adminHandler.AdjustPoints)
			adminGroup.PUT("/members/:id/balance", adminHandler.SetBalance)
			adminGroup.PUT("/members/:id/rank", adminHandler.SetRank)
			adminGroup.PUT("/members/:id/subscription", adminHandler.SetSubscription)
			adminGroup.POST("/invites", adminHandler.IssueInvite)
			adminGroup.GET("/invites", adminHandler.ListInvites)
			adminGroup.GET("/quests", adminHandler.ListQuests)
			adminGroup.POST("/quests", adminHandler.CreateQuest)
			adminGroup.PUT("/quests/:id/active", adminHandler.SetQuestActive)
			adminGroup.GET("/quest-completions", adminHandler.ListCompletions)
			adminGroup.POST("/quest-completions/:id/approve", adminHandler.ApproveCompletion)
			adminGroup.POST("/quest-completions/:id/reject", adminHandler.RejectCompletion)
		}

		// Membership routes
		protected.POST("/membership/verify", membershipHandler.Verify)
		protected.GET("/profile/me", membershipHandler.GetMe)
		protected.PUT("/profile", membershipHandler.UpdateProfile)

		// Ledger routes
		protected.GET("/me/balance", ledgerHandler.GetBalance)
		protected.GET("/me/ledger", ledgerHandler.GetLedger)
		protected.GET("/leaderboard", ledgerHandler.GetLeaderboard)

		// Invite routes
		protected.POST("/invites", inviteHandler.IssueInvite)
		protected.GET("/invites", inviteHandler.ListMyInvites)
		protected.POST("/invites/redeem", membershipHandler.RedeemInvite)

		// Quest routes
		protected.GET("/quests", questHandler.ListQuests)
		protected.POST("/quests/:id/submissions", questHandler.SubmitQuest)

		protected.GET("/members/search", searchHandler.SearchMembers)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Scheduler() *jobs.Scheduler {
	return s.scheduler
}

// Run serves until ctx is canceled, then drains in-flight requests and stops the
// scheduler.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("🚀 listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.scheduler.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.log.Info("shutting down")
	s.scheduler.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok"}
	code := http.StatusOK

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			// Redis only backs rate limits and live pushes.
			status["redis"] = "degraded"
		} else {
			status["redis"] = "ok"
		}
	}

	c.JSON(code, status)
}

func newMemberIndex(cfg *config.Config, log *logger.Logger) searchService.MemberIndex {
	meiliHost := cfg.MeiliSearchHost
	if meiliHost == "" {
		log.Warn("MEILISEARCH_HOST not set, member search disabled")
		return searchService.Disabled{}
	}
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}

	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	return searchService.NewMemberIndex(meiliClient, log)
}

func newPaymentChecker(cfg *config.Config, log *logger.Logger) payment.StatusChecker {
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, paid tiers stay pending until an admin activates them")
		return payment.Disabled{}
	}
	return payment.NewStripeChecker(cfg.StripeSecretKey)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
