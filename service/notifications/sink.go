package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/ws"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// eventTitles maps domain events to user-facing wording. Unknown events get
// a generic title rather than being dropped.
var eventTitles = map[string]struct {
	title string
	body  string
}{
	"appointment.requested": {"Appointment requested", "A new appointment request is awaiting confirmation."},
	"appointment.confirmed": {"Appointment confirmed", "Your appointment has been confirmed."},
	"appointment.cancelled": {"Appointment cancelled", "An appointment has been cancelled."},
	"appointment.completed": {"Appointment completed", "Your consultation has been completed."},
	"appointment.no_show":   {"Appointment marked as no-show", "An appointment was marked as a no-show."},
	"appointment.paid":      {"Payment received", "Payment for your appointment has been recorded."},
	"reschedule.proposed":   {"Reschedule requested", "A new time has been proposed for an appointment."},
	"reschedule.approved":   {"Reschedule approved", "Your appointment has been moved to the new time."},
	"reschedule.rejected":   {"Reschedule rejected", "The proposed new time was declined."},
}

// emailEvents are the events worth an email on top of push and websocket.
var emailEvents = map[string]bool{
	"appointment.confirmed": true,
	"appointment.cancelled": true,
	"reschedule.approved":   true,
}

// Sink is the notification collaborator of the scheduling core. Emit fans an
// event out to the history log, Expo push, the websocket hub and (for a few
// events) email. Every channel failure is logged and swallowed: a scheduling
// action never fails because its notification could not be delivered.
type Sink struct {
	db         *gorm.DB
	expoClient *expo.PushClient
	hub        *ws.Hub
}

func NewSink(db *gorm.DB, hub *ws.Hub) *Sink {
	return &Sink{
		db:         db,
		expoClient: expo.NewPushClient(nil),
		hub:        hub,
	}
}

func (s *Sink) Emit(event string, userID uint, payload map[string]interface{}) {
	go s.deliver(event, userID, payload)
}

func (s *Sink) deliver(event string, userID uint, payload map[string]interface{}) {
	wording, ok := eventTitles[event]
	if !ok {
		wording.title = "Clinic update"
		wording.body = "There is an update on your schedule."
	}

	payloadJSON, _ := json.Marshal(payload)

	status := "sent"
	if err := s.pushToDevices(userID, wording.title, wording.body, payload); err != nil {
		log.Printf("notification: push to user %d failed: %v", userID, err)
		status = "failed"
	}

	s.hub.Push(userID, s.feedMessage(event, payload))

	if emailEvents[event] {
		if err := s.sendEmail(userID, wording.title, wording.body); err != nil {
			log.Printf("notification: email to user %d failed: %v", userID, err)
		}
	}

	history := models.NotificationEvent{
		UserID:  userID,
		Event:   event,
		Title:   wording.title,
		Body:    wording.body,
		Payload: string(payloadJSON),
		Status:  status,
		SentAt:  time.Now(),
	}
	if err := s.db.Create(&history).Error; err != nil {
		log.Printf("notification: error recording history: %v", err)
	}
}

func (s *Sink) feedMessage(event string, payload map[string]interface{}) []byte {
	message, _ := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
	return message
}

func (s *Sink) pushToDevices(userID uint, title, body string, data map[string]interface{}) error {
	var devices []models.Device
	if err := s.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	var validTokens []expo.ExponentPushToken
	for _, device := range devices {
		pushToken, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			log.Printf("notification: invalid push token %s: %v", device.Token, err)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}
	if len(validTokens) == 0 {
		return nil
	}

	stringData := make(map[string]string, len(data))
	for key, value := range data {
		stringData[key] = fmt.Sprintf("%v", value)
	}

	response, err := s.expoClient.Publish(&expo.PushMessage{
		To:       validTokens,
		Title:    title,
		Body:     body,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     stringData,
	})
	if err != nil {
		return err
	}
	return response.ValidateResponse()
}

func (s *Sink) sendEmail(userID uint, subject, body string) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return err
	}

	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		return fmt.Errorf("invalid SMTP port: %v", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)
	return d.DialAndSend(m)
}
