package domain

// User is what the backend returns on login and registration.
type User struct {
	DisplayName string `json:"dispalyName"`
	Email       string `json:"email"`
	Token       string `json:"token"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	DisplayName     string `json:"dispalyName"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phoneNumber"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Role            string `json:"role"`
}

// DashboardStats backs the admin dashboard.
type DashboardStats struct {
	TotalOrders   int   `json:"totalOrders"`
	TotalProducts int   `json:"totalProducts"`
	TotalUsers    int   `json:"totalUsers"`
	Revenue       Money `json:"revenue"`
}
