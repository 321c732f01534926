package api

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/medibook-app/MediBook-server/service/admin"
	"github.com/medibook-app/MediBook-server/service/booking"
	"github.com/medibook-app/MediBook-server/service/doctor"
	"github.com/medibook-app/MediBook-server/service/message"
	"github.com/medibook-app/MediBook-server/service/payment"
	"github.com/medibook-app/MediBook-server/service/user"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	doctorHandler := doctor.NewDoctorHandler(s.db)
	doctorHandler.RegisterRoutes(subrouter)

	bookingHandler := booking.NewBookingHandler(s.db)
	bookingHandler.RegisterRoutes(subrouter)

	paymentHandler := payment.NewPaymentHandler(s.db)
	paymentHandler.RegisterRoutes(subrouter)

	adminHandler := admin.NewAdminHandler(s.db)
	adminHandler.RegisterRoutes(subrouter)

	messageHandler := message.NewMessageHandler(s.db)
	messageHandler.RegisterRoutes(subrouter)

	origins := []string{"*"}
	if configured := os.Getenv("CORS_ALLOWED_ORIGINS"); configured != "" {
		origins = strings.Split(configured, ",")
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, cors(router))
}
