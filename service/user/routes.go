package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/utils"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Handler covers the user directory's own surface: registration, login,
// token refresh and doctor profile administration. The scheduling core only
// ever sees it through scheduling.UserDirectory.
type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/login", h.HandleLogin).Methods("POST")
	router.HandleFunc("/refresh", h.HandleRefreshToken).Methods("POST")
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/doctors", h.GetDoctors).Methods("GET")
	router.HandleFunc("/doctors/{id}/approve", utils.AuthMiddleware(h.ApproveDoctor)).Methods("POST")
	router.HandleFunc("/doctors/{id}/fee", utils.AuthMiddleware(h.UpdateConsultationFee)).Methods("PUT")
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var registerRequest struct {
		FullName        string  `json:"full_name"`
		Email           string  `json:"email"`
		Password        string  `json:"password"`
		Role            string  `json:"role"`
		Phone           string  `json:"phone"`
		Specialty       string  `json:"specialty,omitempty"`
		Bio             string  `json:"bio,omitempty"`
		ConsultationFee float64 `json:"consultation_fee,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if registerRequest.Email == "" || registerRequest.Password == "" || registerRequest.FullName == "" {
		http.Error(w, "Full name, email and password are required", http.StatusBadRequest)
		return
	}
	if registerRequest.Role != models.RolePatient && registerRequest.Role != models.RoleDoctor {
		http.Error(w, "Role must be patient or doctor", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	user := models.User{
		FullName:     registerRequest.FullName,
		Email:        registerRequest.Email,
		PasswordHash: string(hash),
		Role:         registerRequest.Role,
		Phone:        registerRequest.Phone,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if user.Role == models.RoleDoctor {
			// New doctors wait for admin approval before they can be booked.
			doctor := models.Doctor{
				UserID:          user.ID,
				Specialty:       registerRequest.Specialty,
				Bio:             registerRequest.Bio,
				ConsultationFee: registerRequest.ConsultationFee,
			}
			return tx.Create(&doctor).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			http.Error(w, "Email already registered", http.StatusConflict)
			return
		}
		http.Error(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Registration successful",
		"user_id": user.ID,
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", loginRequest.Email).First(&user).Error; err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, err := generateJWT(user.ID, 12)
	if err != nil {
		http.Error(w, "Error generating access token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
		return
	}
	if err := saveRefreshToken(h.db, user.ID, refreshToken); err != nil {
		http.Error(w, "Error saving refresh token", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"message":       "Login successful",
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user_id":       user.ID,
		"role":          user.Role,
	}

	if user.Role == models.RoleDoctor {
		var doctor models.Doctor
		if err := h.db.Where("user_id = ?", user.ID).First(&doctor).Error; err == nil {
			response["doctor_approved"] = doctor.Approved
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Where("refresh_token = ?", refreshRequest.RefreshToken).First(&user).Error; err != nil {
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	if user.RefreshTokenExpiredAt.Before(time.Now()) {
		http.Error(w, "Refresh token expired", http.StatusUnauthorized)
		return
	}

	accessToken, err := generateJWT(user.ID, 12)
	if err != nil {
		http.Error(w, "Error generating access token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": accessToken,
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.db.Preload("Doctor").First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *Handler) GetDoctors(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.Doctor{}).Preload("User")

	// Patients only ever see approved doctors; the admin view passes all=true.
	if r.URL.Query().Get("all") != "true" {
		query = query.Where("approved = ?", true)
	}
	if specialty := r.URL.Query().Get("specialty"); specialty != "" {
		query = query.Where("specialty = ?", specialty)
	}

	var doctors []models.Doctor
	if err := query.Find(&doctors).Error; err != nil {
		http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doctors)
}

// ApproveDoctor marks a doctor's profile bookable. Admin only.
func (h *Handler) ApproveDoctor(w http.ResponseWriter, r *http.Request) {
	if !h.actorIsAdmin(r) {
		scheduling.WriteError(w, scheduling.ErrPermissionDenied)
		return
	}

	doctorUserID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	result := h.db.Model(&models.Doctor{}).Where("user_id = ?", doctorUserID).Update("approved", true)
	if result.Error != nil {
		http.Error(w, "Error approving doctor", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		scheduling.WriteError(w, scheduling.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Doctor approved successfully",
	})
}

// UpdateConsultationFee changes the fee used for future bookings. Already
// created appointments keep the fee they were booked with.
func (h *Handler) UpdateConsultationFee(w http.ResponseWriter, r *http.Request) {
	doctorUserID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if actorID != uint(doctorUserID) && !h.actorIsAdmin(r) {
		scheduling.WriteError(w, scheduling.ErrPermissionDenied)
		return
	}

	var body struct {
		ConsultationFee float64 `json:"consultation_fee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ConsultationFee < 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.db.Model(&models.Doctor{}).Where("user_id = ?", doctorUserID).
		Update("consultation_fee", body.ConsultationFee)
	if result.Error != nil {
		http.Error(w, "Error updating fee", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		scheduling.WriteError(w, scheduling.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Consultation fee updated successfully",
	})
}

func (h *Handler) actorIsAdmin(r *http.Request) bool {
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		return false
	}
	var actor models.User
	if err := h.db.First(&actor, actorID).Error; err != nil {
		return false
	}
	return actor.Role == models.RoleAdmin
}

func generateJWT(userID uint, expirationHours int) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * time.Duration(expirationHours))),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("SECRET_KEY")))
}

func generateRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
	mac.Write([]byte(fmt.Sprintf("%d", userID)))
	mac.Write(b)

	signature := mac.Sum(nil)
	return fmt.Sprintf("%d_%x_%x", userID, b, signature), nil
}

func saveRefreshToken(db *gorm.DB, userID uint, refreshToken string) error {
	expirationTime := time.Now().Add(30 * 24 * time.Hour)
	return db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"refresh_token":            refreshToken,
		"refresh_token_expired_at": expirationTime,
	}).Error
}
