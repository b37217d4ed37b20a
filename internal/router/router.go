package router

import (
	"time"

	"github.com/redis/go-redis/v9"

	"presence/backend/foundation/web"
	"presence/backend/internal/auth"
	"presence/backend/internal/middleware"
	"presence/backend/internal/pkg/cache"
	"presence/backend/internal/pkg/geo"
	"presence/backend/internal/pkg/repository/postgresql"
	"presence/backend/internal/repository/postgres/device"
	"presence/backend/internal/repository/postgres/ledger"
	"presence/backend/internal/repository/postgres/organization"
	"presence/backend/internal/repository/postgres/qrcode"
	"presence/backend/internal/service/scan"

	attendance_controller "presence/backend/internal/controller/http/v1/attendance"
	device_controller "presence/backend/internal/controller/http/v1/device"
	organization_controller "presence/backend/internal/controller/http/v1/organization"
	qrcode_controller "presence/backend/internal/controller/http/v1/qrcode"
)

type Router struct {
	*web.App
	postgresDB     *postgresql.Database
	redisDB        *redis.Client
	port           string
	auth           *auth.Auth
	cacheTTL       time.Duration
	storageTimeout time.Duration
	geoChecker     geo.Checker
}

func NewRouter(
	app *web.App,
	postgresDB *postgresql.Database,
	redisDB *redis.Client,
	port string,
	auth *auth.Auth,
	cacheTTL time.Duration,
	storageTimeout time.Duration,
	geoChecker geo.Checker,
) *Router {
	return &Router{
		app,
		postgresDB,
		redisDB,
		port,
		auth,
		cacheTTL,
		storageTimeout,
		geoChecker,
	}
}

func (r Router) Init() error {

	r.HandleMethodNotAllowed = true
	r.Use(middleware.CorsMiddleware())

	redisCache := cache.New(r.redisDB, r.cacheTTL, time.Now)

	// - postgresql
	qrcodePostgres := qrcode.NewRepository(r.postgresDB, redisCache)
	devicePostgres := device.NewRepository(r.postgresDB)
	ledgerPostgres := ledger.NewRepository(r.postgresDB)
	organizationPostgres := organization.NewRepository(r.postgresDB, redisCache)

	// service
	scanner := scan.NewValidator(qrcodePostgres, devicePostgres, ledgerPostgres, organizationPostgres, r.geoChecker, r.storageTimeout)

	// controller
	attendanceController := attendance_controller.NewController(scanner, ledgerPostgres, organizationPostgres)
	deviceController := device_controller.NewController(devicePostgres)
	qrcodeController := qrcode_controller.NewController(qrcodePostgres)
	organizationController := organization_controller.NewController(organizationPostgres)

	// #attendance
	r.Post("/api/v1/attendance/scan", attendanceController.Scan, middleware.Authenticate(r.auth))
	r.Get("/api/v1/attendance/day", attendanceController.GetDayStatus, middleware.Authenticate(r.auth))
	r.Get("/api/v1/attendance/history", attendanceController.GetHistory, middleware.Authenticate(r.auth))
	r.Patch("/api/v1/attendance/day", attendanceController.ManualMark, middleware.Authenticate(r.auth, auth.RoleAdmin))

	// #device
	r.Get("/api/v1/device", deviceController.GetBinding, middleware.Authenticate(r.auth))
	r.Post("/api/v1/device/change-request", deviceController.FileChangeRequest, middleware.Authenticate(r.auth))
	r.Get("/api/v1/device/change-request/list", deviceController.GetChangeRequests, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Get("/api/v1/device/change-request/:id", deviceController.GetChangeRequestDetail, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Post("/api/v1/device/change-request/resolve", deviceController.ResolveChangeRequest, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Post("/api/v1/device/reset", deviceController.ResetBinding, middleware.Authenticate(r.auth, auth.RoleAdmin))

	// #qrcode
	r.Post("/api/v1/qrcode/issue", qrcodeController.Issue, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Post("/api/v1/qrcode/regenerate", qrcodeController.Regenerate, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Get("/api/v1/qrcode/image", qrcodeController.GetImage, middleware.Authenticate(r.auth, auth.RoleAdmin, auth.RoleDashboard))
	r.Get("/api/v1/qrcode/poster", qrcodeController.GetPoster, middleware.Authenticate(r.auth, auth.RoleAdmin))

	// #organization
	r.Get("/api/v1/organization", organizationController.GetInfo, middleware.Authenticate(r.auth))
	r.Patch("/api/v1/organization", organizationController.UpdateColumns, middleware.Authenticate(r.auth, auth.RoleAdmin))

	return r.Run(r.port)
}
