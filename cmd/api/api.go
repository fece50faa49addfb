package api

import (
	"log"
	"net/http"
	"os"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/appointment"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/availability"
	notification "github.com/sabrisabah/Nutrition-Mays-sub000/service/notifications"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/reschedule"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/slots"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/user"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/ws"
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

	clock := scheduling.SystemClock()
	directory := scheduling.NewGormDirectory(s.db)

	hub := ws.NewHub()
	sink := notification.NewSink(s.db, hub)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	availabilityHandler := availability.NewAvailabilityHandler(s.db, directory)
	availabilityHandler.RegisterRoutes(subrouter)

	slotHandler := slots.NewSlotHandler(s.db)
	slotHandler.RegisterRoutes(subrouter)

	ledger := appointment.NewLedger(s.db, clock, directory, sink)
	appointmentHandler := appointment.NewAppointmentHandler(s.db, ledger)
	appointmentHandler.RegisterRoutes(subrouter)

	coordinator := reschedule.NewCoordinator(s.db, clock, directory, sink)
	rescheduleHandler := reschedule.NewRescheduleHandler(coordinator)
	rescheduleHandler.RegisterRoutes(subrouter)

	notificationHandler := notification.NewNotificationHandler(s.db)
	notificationHandler.RegisterRoutes(subrouter)

	wsHandler := ws.NewWSHandler(hub)
	wsHandler.RegisterRoutes(router)

	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins([]string{"*"}),
		ghandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, ghandlers.LoggingHandler(os.Stdout, cors(router)))
}
