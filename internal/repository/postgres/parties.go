package postgres

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/jackc/pgx/v5"
)

const partyWhere = `
	WHERE ($1::text = '' OR name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%' OR contact ILIKE '%' || $1 || '%')
		AND ($2::text = '' OR status = $2)
	ORDER BY seq ASC
	LIMIT $3 OFFSET $4
`

func (r *txRepo) ListSuppliers(ctx context.Context, filter repository.PartyFilter) ([]domain.Supplier, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, code, name, contact, phone, address, email, status, created_at
		FROM suppliers`+partyWhere,
		strings.TrimSpace(filter.Search), string(filter.Status),
		repository.NormalizeLimit(filter.Limit), repository.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := []domain.Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}
	return suppliers, nil
}

func (r *txRepo) getSupplierBy(ctx context.Context, column, value string) (domain.Supplier, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT id, code, name, contact, phone, address, email, status, created_at
		FROM suppliers
		WHERE `+column+` = $1`, value)
	s, err := scanSupplier(row)
	if err != nil {
		return domain.Supplier{}, notFound(err, "get supplier")
	}
	return s, nil
}

func (r *txRepo) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	return r.getSupplierBy(ctx, "id", id)
}

func (r *txRepo) FindSupplierByCode(ctx context.Context, code string) (domain.Supplier, error) {
	return r.getSupplierBy(ctx, "code", code)
}

func (r *txRepo) InsertSupplier(ctx context.Context, s domain.Supplier) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO suppliers (id, code, name, contact, phone, address, email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.Code, s.Name, s.Contact, s.Phone, s.Address, s.Email, string(s.Status), s.CreatedAt)
	if err != nil {
		return writeErr(err, "insert supplier")
	}
	return nil
}

func (r *txRepo) UpdateSupplier(ctx context.Context, s domain.Supplier) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE suppliers
		SET code = $2, name = $3, contact = $4, phone = $5, address = $6, email = $7, status = $8
		WHERE id = $1
	`, s.ID, s.Code, s.Name, s.Contact, s.Phone, s.Address, s.Email, string(s.Status))
	if err != nil {
		return writeErr(err, "update supplier")
	}
	return affected(tag)
}

func (r *txRepo) DeleteSupplier(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return writeErr(err, "delete supplier")
	}
	return affected(tag)
}

func (r *txRepo) ListCustomers(ctx context.Context, filter repository.PartyFilter) ([]domain.Customer, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, code, name, contact, phone, address, email, credit, status, created_at
		FROM customers`+partyWhere,
		strings.TrimSpace(filter.Search), string(filter.Status),
		repository.NormalizeLimit(filter.Limit), repository.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

func (r *txRepo) getCustomerBy(ctx context.Context, column, value string) (domain.Customer, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT id, code, name, contact, phone, address, email, credit, status, created_at
		FROM customers
		WHERE `+column+` = $1`, value)
	c, err := scanCustomer(row)
	if err != nil {
		return domain.Customer{}, notFound(err, "get customer")
	}
	return c, nil
}

func (r *txRepo) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	return r.getCustomerBy(ctx, "id", id)
}

func (r *txRepo) FindCustomerByCode(ctx context.Context, code string) (domain.Customer, error) {
	return r.getCustomerBy(ctx, "code", code)
}

func (r *txRepo) InsertCustomer(ctx context.Context, c domain.Customer) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO customers (id, code, name, contact, phone, address, email, credit, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.Code, c.Name, c.Contact, c.Phone, c.Address, c.Email, c.Credit, string(c.Status), c.CreatedAt)
	if err != nil {
		return writeErr(err, "insert customer")
	}
	return nil
}

func (r *txRepo) UpdateCustomer(ctx context.Context, c domain.Customer) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE customers
		SET code = $2, name = $3, contact = $4, phone = $5, address = $6, email = $7, credit = $8, status = $9
		WHERE id = $1
	`, c.ID, c.Code, c.Name, c.Contact, c.Phone, c.Address, c.Email, c.Credit, string(c.Status))
	if err != nil {
		return writeErr(err, "update customer")
	}
	return affected(tag)
}

func (r *txRepo) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return writeErr(err, "delete customer")
	}
	return affected(tag)
}

func scanSupplier(row pgx.Row) (domain.Supplier, error) {
	var (
		s      domain.Supplier
		status string
	)
	if err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Contact, &s.Phone, &s.Address, &s.Email, &status, &s.CreatedAt); err != nil {
		return domain.Supplier{}, err
	}
	s.Status = domain.Status(status)
	return s, nil
}

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var (
		c      domain.Customer
		status string
	)
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Contact, &c.Phone, &c.Address, &c.Email, &c.Credit, &status, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.Status = domain.Status(status)
	return c, nil
}
