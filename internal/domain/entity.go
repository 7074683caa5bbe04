package domain

import "time"

// Role is a staff member's position in the shop.
type Role string

const (
	RoleOwner      Role = "Owner"
	RoleManager    Role = "Manager"
	RoleBarber     Role = "Barber"
	RoleCashier    Role = "Cashier"
	RoleSuperAdmin Role = "SuperAdmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleBarber, RoleCashier, RoleSuperAdmin:
		return true
	}
	return false
}

// ProductCategory separates stock sold to customers from shop consumables.
type ProductCategory string

const (
	ProductRetail   ProductCategory = "Retail"
	ProductInternal ProductCategory = "Internal"
)

// Staff is a person working in a shop.
type Staff struct {
	ID             string  `json:"id" yaml:"id"`
	BusinessID     string  `json:"businessId" yaml:"businessId"`
	Name           string  `json:"name" yaml:"name" validate:"notblank,max=200"`
	Role           Role    `json:"role" yaml:"role" validate:"role"`
	CommissionRate float64 `json:"commissionRate" yaml:"commissionRate" validate:"gte=0,lte=1"`
	Phone          string  `json:"phone,omitempty" yaml:"phone" validate:"omitempty,kephone"`
	Email          string  `json:"email,omitempty" yaml:"email"`
	Avatar         string  `json:"avatar,omitempty" yaml:"avatar"`
	Username       string  `json:"username,omitempty" yaml:"username"`
	PasswordHash   string  `json:"passwordHash,omitempty" yaml:"passwordHash"`
	Version        int     `json:"version" yaml:"version"`
}

// Service is a priced, timed offering such as a haircut.
type Service struct {
	ID         string  `json:"id" yaml:"id"`
	BusinessID string  `json:"businessId" yaml:"businessId"`
	Name       string  `json:"name" yaml:"name" validate:"notblank,max=200"`
	Price      float64 `json:"price" yaml:"price" validate:"gte=0"`
	Duration   int     `json:"duration" yaml:"duration" validate:"gte=1"` // minutes
	Category   string  `json:"category" yaml:"category"`
	Version    int     `json:"version" yaml:"version"`
}

// Product is a stocked item. Stock is the contended field.
type Product struct {
	ID         string          `json:"id" yaml:"id"`
	BusinessID string          `json:"businessId" yaml:"businessId"`
	Name       string          `json:"name" yaml:"name" validate:"notblank,max=200"`
	Price      float64         `json:"price" yaml:"price" validate:"gte=0"`
	Stock      int             `json:"stock" yaml:"stock" validate:"gte=0"`
	Category   ProductCategory `json:"category" yaml:"category" validate:"omitempty,oneof=Retail Internal"`
	Version    int             `json:"version" yaml:"version"`
}

type Customer struct {
	ID         string `json:"id" yaml:"id"`
	BusinessID string `json:"businessId" yaml:"businessId"`
	Name       string `json:"name" yaml:"name" validate:"notblank,max=200"`
	Phone      string `json:"phone" yaml:"phone" validate:"omitempty,kephone"`
	Email      string `json:"email,omitempty" yaml:"email"`
	Notes      string `json:"notes,omitempty" yaml:"notes" validate:"max=2000"`
	JoinDate   string `json:"joinDate,omitempty" yaml:"joinDate"`
	Version    int    `json:"version" yaml:"version"`
}

type Appointment struct {
	ID            string            `json:"id"`
	BusinessID    string            `json:"businessId"`
	CustomerName  string            `json:"customerName" validate:"notblank,max=200"`
	CustomerPhone string            `json:"customerPhone,omitempty" validate:"omitempty,kephone"`
	ServiceID     string            `json:"serviceId"`
	StaffID       string            `json:"staffId"`
	Date          string            `json:"date" validate:"required"`
	Status        AppointmentStatus `json:"status" validate:"omitempty,appt_status"`
	Version       int               `json:"version"`
}

// CommissionSplit is one staff member's share of a cart line.
type CommissionSplit struct {
	StaffID    string  `json:"staffId"`
	StaffName  string  `json:"staffName"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// ItemType tells whether a cart line sells a service or a product.
type ItemType string

const (
	ItemService ItemType = "service"
	ItemProduct ItemType = "product"
)

type CartItem struct {
	ItemID           string            `json:"itemId" validate:"required"`
	Type             ItemType          `json:"type" validate:"oneof=service product"`
	Name             string            `json:"name"`
	Price            float64           `json:"price" validate:"gte=0"`
	Quantity         int               `json:"quantity" validate:"gte=1"`
	BarberID         string            `json:"barberId,omitempty"`
	BarberName       string            `json:"barberName,omitempty"`
	StaffIDs         []string          `json:"staffIds,omitempty"`
	StaffNames       []string          `json:"staffNames,omitempty"`
	CommissionSplits []CommissionSplit `json:"commissionSplits,omitempty"`
	ItemVersion      int               `json:"itemVersion,omitempty"`
}

// PaymentMethod is how a sale was settled.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "Cash"
	PaymentMpesa PaymentMethod = "M-Pesa"
	PaymentCard  PaymentMethod = "Card"
	PaymentSplit PaymentMethod = "Split"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentMpesa, PaymentCard, PaymentSplit:
		return true
	}
	return false
}

// TransactionMetadata records who rang up a sale and where.
type TransactionMetadata struct {
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
}

// Transaction is a recorded sale. It has no version; its status follows
// the transaction lattice instead.
type Transaction struct {
	ID                     string               `json:"id" validate:"required,max=128"`
	BusinessID             string               `json:"businessId"`
	Timestamp              time.Time            `json:"timestamp"`
	Items                  []CartItem           `json:"items" validate:"max=100,dive"`
	Total                  float64              `json:"total" validate:"gte=0"`
	PaymentMethod          PaymentMethod        `json:"paymentMethod" validate:"payment_method"`
	Status                 TransactionStatus    `json:"status" validate:"tx_status"`
	CustomerID             string               `json:"customerId,omitempty"`
	CustomerName           string               `json:"customerName,omitempty"`
	IsSynced               bool                 `json:"isSynced"`
	PaymentReference       string               `json:"paymentReference,omitempty"`
	MpesaPhoneNumber       string               `json:"mpesaPhoneNumber,omitempty"`
	MpesaCheckoutRequestID string               `json:"mpesaCheckoutRequestId,omitempty"`
	MpesaReceiptNumber     string               `json:"mpesaReceiptNumber,omitempty"`
	Metadata               *TransactionMetadata `json:"metadata,omitempty"`
}

type BusinessProfile struct {
	Name             string `json:"name" yaml:"name"`
	Phone            string `json:"phone" yaml:"phone"`
	Email            string `json:"email" yaml:"email"`
	Location         string `json:"location" yaml:"location"`
	ReceiptHeader    string `json:"receiptHeader" yaml:"receiptHeader"`
	ReceiptFooter    string `json:"receiptFooter" yaml:"receiptFooter"`
	AutoPrintReceipt bool   `json:"autoPrintReceipt" yaml:"autoPrintReceipt"`
}

type PaymentSettings struct {
	AcceptCash        bool   `json:"acceptCash" yaml:"acceptCash"`
	AcceptMpesa       bool   `json:"acceptMpesa" yaml:"acceptMpesa"`
	AcceptCard        bool   `json:"acceptCard" yaml:"acceptCard"`
	AcceptSplit       bool   `json:"acceptSplit" yaml:"acceptSplit"`
	LipaOnlineEnabled bool   `json:"lipaOnlineEnabled" yaml:"lipaOnlineEnabled"`
	LipaOnlineTill    string `json:"lipaOnlineTill,omitempty" yaml:"lipaOnlineTill"`
}

type BibleSettings struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	VerseOfTheDay   string `json:"verseOfTheDay,omitempty" yaml:"verseOfTheDay"`
	ShowOnDashboard bool   `json:"showOnDashboard" yaml:"showOnDashboard"`
	ShowOnReceipt   bool   `json:"showOnReceipt" yaml:"showOnReceipt"`
}

// Settings is the single per-tenant configuration record.
type Settings struct {
	BusinessID      string            `json:"businessId" yaml:"businessId"`
	Business        BusinessProfile   `json:"business" yaml:"business"`
	Payment         PaymentSettings   `json:"payment" yaml:"payment"`
	Bible           BibleSettings     `json:"bible" yaml:"bible"`
	RolePermissions map[Role][]string `json:"rolePermissions,omitempty" yaml:"rolePermissions"`
	Version         int               `json:"version" yaml:"version"`
}

// SettingsPatch carries the sections of Settings a caller wants to replace.
// Nil sections are left untouched.
type SettingsPatch struct {
	Business        *BusinessProfile  `json:"business,omitempty"`
	Payment         *PaymentSettings  `json:"payment,omitempty"`
	Bible           *BibleSettings    `json:"bible,omitempty"`
	RolePermissions map[Role][]string `json:"rolePermissions,omitempty"`
}

// Apply returns s with the patch's present sections replaced. The version
// is not touched.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Business != nil {
		s.Business = *p.Business
	}
	if p.Payment != nil {
		s.Payment = *p.Payment
	}
	if p.Bible != nil {
		s.Bible = *p.Bible
	}
	if p.RolePermissions != nil {
		s.RolePermissions = p.RolePermissions
	}
	return s
}
