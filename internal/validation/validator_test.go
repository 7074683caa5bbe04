package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/V4T54L/barber-pos/internal/domain"
)

func validSale() domain.Transaction {
	return domain.Transaction{
		ID:            "tx-1",
		PaymentMethod: domain.PaymentCash,
		Status:        domain.TransactionCompleted,
		Total:         800,
		Items: []domain.CartItem{{
			ItemID: "svc-haircut", Type: domain.ItemService, Name: "Haircut", Price: 500, Quantity: 1,
			CommissionSplits: []domain.CommissionSplit{{StaffID: "a", Percentage: 60}, {StaffID: "b", Percentage: 40}},
		}, {
			ItemID: "prd-beard-oil", Type: domain.ItemProduct, Name: "Beard Oil", Price: 300, Quantity: 1,
		}},
	}
}

func TestValidateTransaction(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		mutate    func(tx *domain.Transaction)
		wantField string
	}{
		{"valid sale", func(tx *domain.Transaction) {}, ""},
		{"missing id", func(tx *domain.Transaction) { tx.ID = "" }, "id"},
		{"unknown payment method", func(tx *domain.Transaction) { tx.PaymentMethod = "Barter" }, "paymentMethod"},
		{"unknown status", func(tx *domain.Transaction) { tx.Status = "Lost" }, "status"},
		{"bad item type", func(tx *domain.Transaction) { tx.Items[1].Type = "voucher" }, "items[1].type"},
		{"zero quantity", func(tx *domain.Transaction) { tx.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"splits over 100", func(tx *domain.Transaction) { tx.Items[0].CommissionSplits[1].Percentage = 50 }, "items[0].commissionSplits"},
		{"negative split", func(tx *domain.Transaction) { tx.Items[0].CommissionSplits[0].Percentage = -10 }, "items[0].commissionSplits"},
		{"missing item id", func(tx *domain.Transaction) { tx.Items[1].ItemID = "" }, "items[1].itemId"},
		{"negative total", func(tx *domain.Transaction) { tx.Total = -1 }, "total"},
		{"id too long", func(tx *domain.Transaction) { tx.ID = strings.Repeat("x", 129) }, "id"},
		{"too many lines", func(tx *domain.Transaction) {
			for len(tx.Items) <= 100 {
				tx.Items = append(tx.Items, tx.Items[1])
			}
		}, "items"},
		{"bad m-pesa phone on a cash sale is ignored", func(tx *domain.Transaction) { tx.MpesaPhoneNumber = "12345" }, ""},
		{"m-pesa with bad phone", func(tx *domain.Transaction) {
			tx.PaymentMethod = domain.PaymentMpesa
			tx.MpesaPhoneNumber = "12345"
		}, "mpesaPhoneNumber"},
		{"m-pesa with good phone", func(tx *domain.Transaction) {
			tx.PaymentMethod = domain.PaymentMpesa
			tx.MpesaPhoneNumber = "+254712345678"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validSale()
			tt.mutate(&tx)
			err := v.ValidateTransaction(tx)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Error("expected error to match ErrValidation")
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	v := NewValidator()
	for _, phone := range []string{"", "0712345678", "0112345678", "+254712345678", "712345678"} {
		if err := v.ValidatePhone("phone", phone); err != nil {
			t.Errorf("expected %q to be valid, got %v", phone, err)
		}
	}
	for _, phone := range []string{"0812345678", "+1555123456", "07123"} {
		if err := v.ValidatePhone("phone", phone); err == nil {
			t.Errorf("expected %q to be rejected", phone)
		}
	}
}

func TestValidateEntities(t *testing.T) {
	v := NewValidator()

	if err := v.ValidateStaff(domain.Staff{Name: "Ann", Role: "Janitor"}); err == nil {
		t.Error("expected unknown role to be rejected")
	}
	if err := v.ValidateStaff(domain.Staff{Name: "Ann", Role: domain.RoleBarber, CommissionRate: 1.5}); err == nil {
		t.Error("expected commission above 1 to be rejected")
	}
	if err := v.ValidateService(domain.Service{Name: "Fade", Price: 600, Duration: 0}); err == nil {
		t.Error("expected zero duration to be rejected")
	}
	if err := v.ValidateProduct(domain.Product{Name: "Wax", Price: 100, Stock: -2}); err == nil {
		t.Error("expected negative stock to be rejected")
	}
	if err := v.ValidateCustomer(domain.Customer{Name: "Kip", Phone: "0722000111"}); err != nil {
		t.Errorf("expected valid customer, got %v", err)
	}
	if err := v.ValidateAppointment(domain.Appointment{CustomerName: "Kip"}); err == nil {
		t.Error("expected missing date to be rejected")
	}
}

func TestValidationReasons(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		err       error
		wantField string
		wantIn    string
	}{
		{"blank name", v.ValidateStaff(domain.Staff{Name: "   ", Role: domain.RoleBarber}), "name", "is required"},
		{"long name", v.ValidateCustomer(domain.Customer{Name: strings.Repeat("a", 201)}), "name", "exceeds 200 characters"},
		{"long notes", v.ValidateCustomer(domain.Customer{Name: "Kip", Notes: strings.Repeat("n", 2001)}), "notes", "exceeds 2000 characters"},
		{"bad phone", v.ValidateCustomer(domain.Customer{Name: "Kip", Phone: "0812345678"}), "phone", "Kenyan phone"},
		{"unknown role", v.ValidateStaff(domain.Staff{Name: "Ann", Role: "Janitor"}), "role", `"Janitor" is not a known role`},
		{"negative price", v.ValidateService(domain.Service{Name: "Fade", Price: -1, Duration: 30}), "price", "cannot be negative"},
		{"bad category", v.ValidateProduct(domain.Product{Name: "Wax", Category: "Gift"}), "category", `"Gift" is not one of Retail, Internal`},
		{"bad appointment status", v.ValidateAppointment(domain.Appointment{CustomerName: "Kip", Date: "2026-10-20", Status: "Lost"}), "status", "appointment status"},
		{"blank business name", v.ValidateBusiness(domain.Business{ID: "shop-a", Name: "", Status: domain.BusinessActive}), "name", "is required"},
		{"bad business status", v.ValidateBusiness(domain.Business{ID: "shop-a", Name: "A", Status: "closed"}), "status", "active or suspended"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *domain.ValidationError
			if !errors.As(tt.err, &verr) {
				t.Fatalf("expected ValidationError, got %v", tt.err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
			if !strings.Contains(verr.Reason, tt.wantIn) {
				t.Errorf("expected reason to contain %q, got %q", tt.wantIn, verr.Reason)
			}
		})
	}

	if err := v.ValidateBusiness(domain.Business{ID: "shop-a", Name: "Kinyozi", Status: domain.BusinessActive}); err != nil {
		t.Errorf("expected valid business, got %v", err)
	}
}
