// Package dashboard serves the console screens: the home cards, the role
// matrix and one CRUD screen per backend collection.
package dashboard

import (
	"strconv"
	"strings"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
	"github.com/odyssey-erp/warehouse-console/internal/backend"
	"github.com/odyssey-erp/warehouse-console/internal/view"
)

// Column is a list table column.
type Column struct {
	Key   string
	Label string
}

// Field is a form input. Rules holds validator tags applied to the
// submitted string.
type Field struct {
	Key     string
	Label   string
	Type    string
	Options []string
	Rules   string
}

// Resource describes one CRUD screen backed by a backend collection.
type Resource struct {
	Title      string
	Singular   string
	Module     string
	Path       string
	Collection string
	Columns    []Column
	Fields     []Field
}

// rules returns the validator tags for f, adding oneof for selects.
func (f Field) rules() string {
	if f.Type != "select" || len(f.Options) == 0 {
		return f.Rules
	}
	oneOf := "oneof=" + strings.Join(f.Options, " ")
	if f.Rules == "" {
		return oneOf
	}
	return f.Rules + "," + oneOf
}

// values flattens a backend record into form values.
func (res Resource) values(rec backend.Record) map[string]string {
	out := make(map[string]string, len(res.Fields))
	for _, f := range res.Fields {
		out[f.Key] = view.Field(rec, f.Key)
	}
	return out
}

// record converts validated form values into the backend payload. Number
// fields are sent as JSON numbers. Empty values are omitted, or sent as null
// when blank is set so that a PATCH can blank them.
func (res Resource) record(values map[string]string, blank bool) backend.Record {
	rec := make(backend.Record, len(values))
	for _, f := range res.Fields {
		v, ok := values[f.Key]
		if !ok {
			continue
		}
		if v == "" {
			if blank {
				rec[f.Key] = nil
			}
			continue
		}
		if f.Type == "number" {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				rec[f.Key] = n
				continue
			}
		}
		rec[f.Key] = v
	}
	return rec
}

// DefaultResources lists the console CRUD screens. Paths match the route
// table in authz.DefaultRoutes.
func DefaultResources() []Resource {
	return []Resource{
		{
			Title: "Users", Singular: "user", Module: authz.ModuleUsers,
			Path: "/users", Collection: "users",
			Columns: []Column{{"name", "Name"}, {"email", "Email"}, {"role", "Role"}},
			Fields: []Field{
				{Key: "name", Label: "Name", Type: "text", Rules: "required,max=120"},
				{Key: "email", Label: "Email", Type: "email", Rules: "required,email"},
				{Key: "role", Label: "Role", Type: "select", Options: roleOptions(), Rules: "required"},
			},
		},
		{
			Title: "Products", Singular: "product", Module: authz.ModuleProducts,
			Path: "/products", Collection: "products",
			Columns: []Column{{"sku", "SKU"}, {"name", "Name"}, {"unit", "Unit"}, {"stock", "Stock"}, {"price", "Price"}},
			Fields: []Field{
				{Key: "sku", Label: "SKU", Type: "text", Rules: "required,printascii,max=40"},
				{Key: "name", Label: "Name", Type: "text", Rules: "required,max=120"},
				{Key: "unit", Label: "Unit", Type: "select", Options: []string{"pcs", "box", "pallet", "kg"}, Rules: "required"},
				{Key: "stock", Label: "Stock", Type: "number", Rules: "required,numeric"},
				{Key: "price", Label: "Price", Type: "number", Rules: "omitempty,numeric"},
			},
		},
		{
			Title: "Customers", Singular: "customer", Module: authz.ModuleCustomers,
			Path: "/customers", Collection: "customers",
			Columns: []Column{{"name", "Name"}, {"email", "Email"}, {"phone", "Phone"}},
			Fields: []Field{
				{Key: "name", Label: "Name", Type: "text", Rules: "required,max=120"},
				{Key: "email", Label: "Email", Type: "email", Rules: "omitempty,email"},
				{Key: "phone", Label: "Phone", Type: "text", Rules: "omitempty,max=32"},
				{Key: "address", Label: "Address", Type: "textarea", Rules: "omitempty,max=500"},
			},
		},
		{
			Title: "Purchase Orders", Singular: "purchase order", Module: authz.ModulePurchaseOrders,
			Path: "/purchase-orders", Collection: "purchase-orders",
			Columns: []Column{{"number", "Number"}, {"supplier", "Supplier"}, {"status", "Status"}, {"total", "Total"}, {"expected_at", "Expected"}},
			Fields: []Field{
				{Key: "number", Label: "Number", Type: "text", Rules: "required,max=40"},
				{Key: "supplier", Label: "Supplier", Type: "text", Rules: "required,max=120"},
				{Key: "status", Label: "Status", Type: "select", Options: []string{"draft", "submitted", "received", "cancelled"}, Rules: "required"},
				{Key: "total", Label: "Total", Type: "number", Rules: "omitempty,numeric"},
				{Key: "expected_at", Label: "Expected", Type: "date", Rules: "omitempty,datetime=2006-01-02"},
			},
		},
		{
			Title: "Delivery Orders", Singular: "delivery order", Module: authz.ModuleDeliveryOrders,
			Path: "/delivery-orders", Collection: "delivery-orders",
			Columns: []Column{{"number", "Number"}, {"customer", "Customer"}, {"status", "Status"}, {"ship_date", "Ship date"}},
			Fields: []Field{
				{Key: "number", Label: "Number", Type: "text", Rules: "required,max=40"},
				{Key: "customer", Label: "Customer", Type: "text", Rules: "required,max=120"},
				{Key: "status", Label: "Status", Type: "select", Options: []string{"pending", "shipped", "delivered"}, Rules: "required"},
				{Key: "ship_date", Label: "Ship date", Type: "date", Rules: "omitempty,datetime=2006-01-02"},
			},
		},
		{
			Title: "Tasks", Singular: "task", Module: authz.ModuleTasks,
			Path: "/tasks", Collection: "tasks",
			Columns: []Column{{"title", "Title"}, {"assignee", "Assignee"}, {"status", "Status"}, {"due", "Due"}},
			Fields: []Field{
				{Key: "title", Label: "Title", Type: "text", Rules: "required,max=200"},
				{Key: "assignee", Label: "Assignee", Type: "text", Rules: "omitempty,max=120"},
				{Key: "status", Label: "Status", Type: "select", Options: []string{"todo", "in_progress", "done"}, Rules: "required"},
				{Key: "due", Label: "Due", Type: "date", Rules: "omitempty,datetime=2006-01-02"},
			},
		},
	}
}

func roleOptions() []string {
	roles := authz.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}
