package models

import "time"

// QuoteRequest is a storefront visitor asking for a signage quote
type QuoteRequest struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Name        string   `gorm:"size:100;not null" json:"name"`
	Company     string   `gorm:"size:100" json:"company"`
	Email       string   `gorm:"size:255;not null" json:"email"`
	Phone       string   `gorm:"size:50" json:"phone"`
	ProductID   *uint    `gorm:"index" json:"product_id"`
	Product     *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Message     string   `gorm:"type:text;not null" json:"message"`
	Status      string   `gorm:"size:20;default:new;index" json:"status"` // new, quoted, won, lost
	AdminNote   string   `gorm:"size:500" json:"admin_note"`
	IPAddress   string   `gorm:"size:50" json:"ip_address"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuoteRequest) TableName() string {
	return "quote_requests"
}

// Inquiry is a general contact form message
type Inquiry struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:100;not null" json:"name"`
	Email     string `gorm:"size:255;not null" json:"email"`
	Subject   string `gorm:"size:255" json:"subject"`
	Message   string `gorm:"type:text;not null" json:"message"`
	IsRead    bool   `gorm:"default:false;index" json:"is_read"`
	IPAddress string `gorm:"size:50" json:"ip_address"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Inquiry) TableName() string {
	return "inquiries"
}

// Notification is a back office notification shown to admins
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"size:50;default:info" json:"type"` // info, warning, error, success
	IsRead    bool      `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
