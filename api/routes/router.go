package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockroom/catalog-backend/api/controllers"
	"github.com/stockroom/catalog-backend/api/middleware"
	"github.com/stockroom/catalog-backend/internal/categories"
	inventorysvc "github.com/stockroom/catalog-backend/internal/inventory"
	productsvc "github.com/stockroom/catalog-backend/internal/products"
	"github.com/stockroom/catalog-backend/internal/reviews"
	"github.com/stockroom/catalog-backend/pkg/config"
	"github.com/stockroom/catalog-backend/pkg/db"
	"github.com/stockroom/catalog-backend/pkg/enums"
	"github.com/stockroom/catalog-backend/pkg/logger"
	"github.com/stockroom/catalog-backend/pkg/metrics"
	"github.com/stockroom/catalog-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	productService productsvc.Service,
	categoryService categories.Service,
	inventoryService inventorysvc.Service,
	reviewService reviews.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	readiness := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(productService, logg))
		r.Get("/products/{productId}", controllers.GetProduct(productService, logg))
		r.Get("/products/{productId}/reviews", controllers.ListReviews(reviewService, logg))

		r.Get("/categories", controllers.ListCategories(categoryService, logg))
		r.Get("/categories/{categoryId}", controllers.GetCategory(categoryService, logg))

		r.Get("/inventory/{productId}", controllers.GetInventory(inventoryService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Post("/products/{productId}/reviews", controllers.CreateReview(reviewService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleAdmin, logg))

				r.Post("/products", controllers.CreateProduct(productService, logg))
				r.Put("/products/{productId}", controllers.UpdateProduct(productService, logg))
				r.Delete("/products/{productId}", controllers.DeleteProduct(productService, logg))

				r.Post("/categories", controllers.CreateCategory(categoryService, logg))
				r.Put("/categories/{categoryId}", controllers.UpdateCategory(categoryService, logg))
				r.Delete("/categories/{categoryId}", controllers.DeleteCategory(categoryService, logg))

				r.Put("/inventory/{productId}", controllers.UpdateInventory(inventoryService, logg))
				r.Post("/inventory/{productId}/reserve", controllers.ReserveInventory(inventoryService, logg))
				r.Post("/inventory/{productId}/release", controllers.ReleaseInventory(inventoryService, logg))

				r.Post("/reviews/{reviewId}/moderate", controllers.ModerateReview(reviewService, logg))
			})
		})
	})

	return r
}
