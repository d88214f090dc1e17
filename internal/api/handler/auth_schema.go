package handler

type signUpRequest struct {
	Name       string `json:"name"       validate:"required"`
	Email      string `json:"email"      validate:"required,email"`
	Password   string `json:"password"   validate:"required,bcryptmax"`
	Role       string `json:"role"       validate:"required,oneof=ADMIN CUSTOMER"`
	ContactNo  string `json:"contactNo"  validate:"required"`
	Address    string `json:"address"    validate:"required"`
	ProfileImg string `json:"profileImg" validate:"omitempty,max=2048"`
}

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,bcryptmax"`
}

// apiResponse is the success envelope shared by all auth endpoints.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type accessTokenData struct {
	AccessToken string `json:"accessToken"`
}

// errorResponse is the canonical error envelope.
type errorResponse struct {
	Error string `json:"error"`
}
