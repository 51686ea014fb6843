package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-chat/internal/services"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register mounts the auth routes under group. authMW guards the session-only routes.
func (h *AuthHandler) Register(group *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := group.Group("/auth")
	g.POST("/send-otp", h.SendOTP)
	g.POST("/verify-otp", h.VerifyOTP)
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	g.GET("/check", authMW, h.Check)
	g.PUT("/update-profile", authMW, h.UpdateProfile)
	g.POST("/logout", authMW, h.Logout)
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type signupRequest struct {
	FullName string  `json:"fullName"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Bio      *string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	FullName   *string `json:"fullName"`
	Bio        *string `json:"bio"`
	ProfilePic *string `json:"profilePic"`
}

func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.SendOTP(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "OTP sent to email"})
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "OTP verified"})
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Signup(c.Request.Context(), services.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Bio:      req.Bio,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"userData": res.User, "token": res.Token, "message": "Account created successfully"})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"userData": res.User, "token": res.Token, "message": "Login successful"})
}

func (h *AuthHandler) Check(c *gin.Context) {
	user, err := h.svc.Check(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.svc.UpdateProfile(c.Request.Context(), userIDFromContext(c), services.ProfileInput{
		FullName:   req.FullName,
		Bio:        req.Bio,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.svc.Logout(c.Request.Context(), userIDFromContext(c))
	respond(c, http.StatusOK, gin.H{"message": "Logged out"})
}
