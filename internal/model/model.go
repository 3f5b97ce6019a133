package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type Category string

const (
	CategoryVisit        Category = "Visit"
	CategoryConsultation Category = "Consultation"
	CategorySession      Category = "Session"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryVisit, CategoryConsultation, CategorySession:
		return true
	}
	return false
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type User struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Status           UserStatus `json:"status"`
	Role             Role       `json:"role"`
	GoogleID         *string    `json:"googleId,omitempty"`
	FacebookID       *string    `json:"facebookId,omitempty"`
	ResetTokenHash   *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type Service struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Duration    string    `json:"duration"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Appointment references its service weakly: ServiceTitle is nil once the
// service row is gone.
type Appointment struct {
	ID                 string    `json:"id"`
	ServiceID          string    `json:"serviceId"`
	UserID             string    `json:"userId"`
	DateTime           time.Time `json:"dateTime"`
	RequestDescription string    `json:"requestDescription"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	ServiceTitle *string `json:"serviceTitle"`
	Username     *string `json:"username,omitempty"`
}

// Reminder is a confirmed appointment joined with its owner's email.
type Reminder struct {
	AppointmentID string
	ServiceTitle  *string
	DateTime      time.Time
	Email         string
}

type StatusCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
}

func (c *StatusCounts) Add(s Status, n int) {
	c.Total += n
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusConfirmed:
		c.Confirmed += n
	case StatusCancelled:
		c.Cancelled += n
	}
}
