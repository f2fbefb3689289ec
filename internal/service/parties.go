package service

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/repository"
)

func (s *Service) ListSuppliers(ctx context.Context, filter repository.PartyFilter) ([]domain.Supplier, error) {
	var suppliers []domain.Supplier
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		suppliers, err = tx.ListSuppliers(ctx, filter)
		return err
	})
	return suppliers, err
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		supplier, err = tx.GetSupplier(ctx, id)
		return err
	})
	return supplier, err
}

func partyStatus(status domain.Status) (domain.Status, error) {
	if status == "" {
		return domain.StatusActive, nil
	}
	if !status.Valid() {
		return "", validationf("invalid status %q", status)
	}
	return status, nil
}

func (s *Service) CreateSupplier(ctx context.Context, input domain.SupplierInput) (domain.Supplier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Supplier{}, validationf("name is required")
	}
	status, err := partyStatus(input.Status)
	if err != nil {
		return domain.Supplier{}, err
	}

	now := s.clock()
	supplier := domain.Supplier{
		ID:        s.newID(),
		Code:      strings.TrimSpace(input.Code),
		Name:      name,
		Contact:   strings.TrimSpace(input.Contact),
		Phone:     strings.TrimSpace(input.Phone),
		Address:   strings.TrimSpace(input.Address),
		Email:     normalizeNullable(input.Email),
		Status:    status,
		CreatedAt: now,
	}
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		if supplier.Code == "" {
			code, err := uniqueCode(
				func() string { return domain.PartyCode(domain.SupplierCodePrefix, now, s.rnd) },
				func(code string) error {
					_, err := tx.FindSupplierByCode(ctx, code)
					return err
				},
			)
			if err != nil {
				return err
			}
			supplier.Code = code
		}
		return tx.InsertSupplier(ctx, supplier)
	})
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return supplier, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, patch domain.SupplierPatch) (domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		supplier, err = tx.GetSupplier(ctx, id)
		if err != nil {
			return err
		}
		if err := applyPartyPatch(&supplier.Code, &supplier.Name, &supplier.Contact, &supplier.Phone,
			&supplier.Address, &supplier.Email, &supplier.Status, partyPatch{
				Code: patch.Code, Name: patch.Name, Contact: patch.Contact, Phone: patch.Phone,
				Address: patch.Address, Email: patch.Email, Status: patch.Status,
			}); err != nil {
			return err
		}
		return tx.UpdateSupplier(ctx, supplier)
	})
	return supplier, err
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	return s.store.Update(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetSupplier(ctx, id); err != nil {
			return err
		}
		if err := s.refuseReferencedParty(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteSupplier(ctx, id)
	})
}

func (s *Service) ToggleSupplierStatus(ctx context.Context, id string) (domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		supplier, err = tx.GetSupplier(ctx, id)
		if err != nil {
			return err
		}
		supplier.Status = supplier.Status.Toggle()
		return tx.UpdateSupplier(ctx, supplier)
	})
	return supplier, err
}

func (s *Service) ListCustomers(ctx context.Context, filter repository.PartyFilter) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		customers, err = tx.ListCustomers(ctx, filter)
		return err
	})
	return customers, err
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	var customer domain.Customer
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		customer, err = tx.GetCustomer(ctx, id)
		return err
	})
	return customer, err
}

func (s *Service) CreateCustomer(ctx context.Context, input domain.CustomerInput) (domain.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Customer{}, validationf("name is required")
	}
	if input.Credit.IsNegative() {
		return domain.Customer{}, validationf("credit cannot be negative")
	}
	status, err := partyStatus(input.Status)
	if err != nil {
		return domain.Customer{}, err
	}

	now := s.clock()
	customer := domain.Customer{
		ID:        s.newID(),
		Code:      strings.TrimSpace(input.Code),
		Name:      name,
		Contact:   strings.TrimSpace(input.Contact),
		Phone:     strings.TrimSpace(input.Phone),
		Address:   strings.TrimSpace(input.Address),
		Email:     normalizeNullable(input.Email),
		Credit:    input.Credit,
		Status:    status,
		CreatedAt: now,
	}
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		if customer.Code == "" {
			code, err := uniqueCode(
				func() string { return domain.PartyCode(domain.CustomerCodePrefix, now, s.rnd) },
				func(code string) error {
					_, err := tx.FindCustomerByCode(ctx, code)
					return err
				},
			)
			if err != nil {
				return err
			}
			customer.Code = code
		}
		return tx.InsertCustomer(ctx, customer)
	})
	if err != nil {
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, patch domain.CustomerPatch) (domain.Customer, error) {
	var customer domain.Customer
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		customer, err = tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if err := applyPartyPatch(&customer.Code, &customer.Name, &customer.Contact, &customer.Phone,
			&customer.Address, &customer.Email, &customer.Status, partyPatch{
				Code: patch.Code, Name: patch.Name, Contact: patch.Contact, Phone: patch.Phone,
				Address: patch.Address, Email: patch.Email, Status: patch.Status,
			}); err != nil {
			return err
		}
		if patch.Credit != nil {
			if patch.Credit.IsNegative() {
				return validationf("credit cannot be negative")
			}
			customer.Credit = *patch.Credit
		}
		return tx.UpdateCustomer(ctx, customer)
	})
	return customer, err
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.store.Update(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetCustomer(ctx, id); err != nil {
			return err
		}
		if err := s.refuseReferencedParty(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteCustomer(ctx, id)
	})
}

func (s *Service) ToggleCustomerStatus(ctx context.Context, id string) (domain.Customer, error) {
	var customer domain.Customer
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		customer, err = tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		customer.Status = customer.Status.Toggle()
		return tx.UpdateCustomer(ctx, customer)
	})
	return customer, err
}

func (s *Service) refuseReferencedParty(ctx context.Context, tx repository.Tx, id string) error {
	referenced, err := tx.PartyReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("delete party %s: %w", id, domain.ErrPartyInUse)
	}
	return nil
}

type partyPatch struct {
	Code    *string
	Name    *string
	Contact *string
	Phone   *string
	Address *string
	Email   *string
	Status  *domain.Status
}

func applyPartyPatch(code, name, contact, phone, address *string, email **string, status *domain.Status, patch partyPatch) error {
	if patch.Code != nil {
		value := strings.TrimSpace(*patch.Code)
		if value == "" {
			return validationf("code cannot be empty")
		}
		*code = value
	}
	if patch.Name != nil {
		value := strings.TrimSpace(*patch.Name)
		if value == "" {
			return validationf("name cannot be empty")
		}
		*name = value
	}
	if patch.Contact != nil {
		*contact = strings.TrimSpace(*patch.Contact)
	}
	if patch.Phone != nil {
		*phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Address != nil {
		*address = strings.TrimSpace(*patch.Address)
	}
	if patch.Email != nil {
		*email = normalizeNullable(patch.Email)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return validationf("invalid status %q", *patch.Status)
		}
		*status = *patch.Status
	}
	return nil
}
