package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT UNIQUE NOT NULL,
	is_active INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	price REAL NOT NULL,
	stock INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	product_id INTEGER NOT NULL,
	quantity INTEGER NOT NULL,
	order_status TEXT NOT NULL,
	order_date TEXT NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id),
	FOREIGN KEY(product_id) REFERENCES products(id)
);
`

// timestamps are stored the way the demo data has always been written
const isoLayout = "2006-01-02T15:04:05.000000"

type seedUser struct {
	name, email string
	active      bool
	daysAgo     int
}

type seedProduct struct {
	name, category string
	price          float64
	stock          int
}

type seedOrder struct {
	userID, productID, quantity int
	status                      string
	daysAgo                     int
}

var seedUsers = []seedUser{
	{"Sarah Johnson", "sarah.johnson@gmail.com", true, 180},
	{"Michael Chen", "m.chen@outlook.com", true, 240},
	{"Emily Rodriguez", "emily.r.2024@yahoo.com", true, 90},
	{"James Wilson", "james.wilson@company.com", false, 300},
	{"Priya Patel", "priya.patel@tech.io", true, 45},
	{"David Thompson", "d.thompson@university.edu", true, 120},
	{"Maria Garcia", "maria.garcia@startup.com", true, 60},
	{"Robert Kim", "robert.kim@freelancer.net", false, 400},
	{"Jessica Brown", "jess.brown.writer@gmail.com", true, 15},
	{"Ahmed Hassan", "a.hassan@consulting.biz", true, 200},
	{"Lisa Anderson", "lisa.and@photographer.pro", true, 30},
	{"Chris Martinez", "chris.m.dev@github.io", true, 75},
}

var seedProducts = []seedProduct{
	{"MacBook Pro 16-inch", "Electronics", 2499.99, 8},
	{"iPhone 15 Pro", "Electronics", 1199.00, 15},
	{"Samsung Galaxy S24", "Electronics", 899.99, 22},
	{"Sony WH-1000XM5 Headphones", "Electronics", 399.99, 35},
	{"iPad Air 11-inch", "Electronics", 699.00, 12},
	{"Dell XPS 13 Laptop", "Electronics", 1399.99, 6},
	{"AirPods Pro (2nd Gen)", "Electronics", 249.99, 45},

	{"Ninja Foodi Air Fryer", "Home & Kitchen", 159.99, 28},
	{"Dyson V15 Vacuum Cleaner", "Home & Kitchen", 749.99, 5},
	{"KitchenAid Stand Mixer", "Home & Kitchen", 449.99, 14},
	{"Yeti Rambler Tumbler", "Home & Kitchen", 39.99, 120},
	{"Instant Pot Duo 7-in-1", "Home & Kitchen", 99.99, 32},

	{"The Psychology of Money", "Books", 16.99, 85},
	{"Atomic Habits", "Books", 18.99, 67},
	{"The Midnight Library", "Books", 14.99, 42},
	{"Educated: A Memoir", "Books", 17.99, 38},

	{"Levi's 501 Original Jeans", "Clothing", 89.99, 55},
	{"Nike Air Max 270", "Clothing", 149.99, 33},
	{"Patagonia Houdini Jacket", "Clothing", 129.99, 18},
	{"Uniqlo Merino Wool Sweater", "Clothing", 59.99, 41},

	{"Hydro Flask Water Bottle", "Sports & Outdoors", 44.99, 78},
	{"Yoga Mat Premium", "Sports & Outdoors", 89.99, 29},
	{"Resistance Bands Set", "Sports & Outdoors", 24.99, 95},

	{"Ergonomic Office Chair", "Office Supplies", 299.99, 11},
	{"Moleskine Notebook Set", "Office Supplies", 34.99, 156},
}

var seedOrders = []seedOrder{
	{9, 1, 1, "Delivered", 5},
	{11, 7, 2, "Shipped", 3},
	{5, 13, 1, "Pending", 1},
	{12, 21, 1, "Processing", 2},

	{1, 4, 1, "Delivered", 12},
	{3, 17, 2, "Delivered", 18},
	{7, 8, 1, "Delivered", 25},
	{10, 22, 1, "Shipped", 8},
	{6, 14, 3, "Delivered", 15},

	{1, 2, 1, "Delivered", 45},
	{5, 11, 2, "Delivered", 38},
	{9, 18, 1, "Delivered", 52},
	{11, 24, 1, "Delivered", 41},

	{3, 12, 1, "Delivered", 78},
	{7, 19, 1, "Delivered", 85},
	{12, 6, 1, "Delivered", 92},
	{10, 23, 2, "Delivered", 67},

	{1, 9, 1, "Delivered", 125},
	{5, 3, 1, "Delivered", 134},
	{6, 16, 2, "Delivered", 156},
	{9, 20, 1, "Delivered", 143},

	{1, 25, 3, "Delivered", 167},
	{1, 15, 2, "Delivered", 189},
	{5, 21, 1, "Delivered", 201},
	{9, 13, 1, "Delivered", 178},

	{3, 1, 1, "Cancelled", 95},
	{7, 5, 1, "Returned", 110},
	{12, 24, 1, "Cancelled", 88},

	{10, 1, 2, "Delivered", 234},
	{6, 6, 3, "Delivered", 198},

	{11, 25, 5, "Delivered", 21},
	{5, 23, 3, "Shipped", 6},

	{7, 14, 1, "Delivered", 72},
	{10, 10, 1, "Delivered", 145},
	{12, 4, 1, "Processing", 4},

	{4, 17, 1, "Delivered", 320},
	{8, 11, 2, "Delivered", 380},
}

// Seed creates the demo schema and loads the demo rows. With reset the
// tables are dropped first; without it existing rows are kept and only
// missing ones are inserted.
func (s *Store) Seed(ctx context.Context, reset bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if reset {
		for _, table := range []string{"orders", "products", "users"} {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	now := time.Now()
	daysAgo := func(n int) string {
		return now.AddDate(0, 0, -n).Format(isoLayout)
	}

	for i, u := range seedUsers {
		active := 0
		if u.active {
			active = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO users (id, name, email, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
			i+1, u.name, u.email, active, daysAgo(u.daysAgo),
		); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}

	for i, p := range seedProducts {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO products (id, name, category, price, stock) VALUES (?, ?, ?, ?, ?)`,
			i+1, p.name, p.category, p.price, p.stock,
		); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}

	for i, o := range seedOrders {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO orders (id, user_id, product_id, quantity, order_status, order_date) VALUES (?, ?, ?, ?, ?, ?)`,
			i+1, o.userID, o.productID, o.quantity, o.status, daysAgo(o.daysAgo),
		); err != nil {
			return fmt.Errorf("seed orders: %w", err)
		}
	}

	return tx.Commit()
}

// Schema describes the user tables, one CREATE statement per line.
func (s *Store) Schema(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL ORDER BY name`,
	)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", err
		}
		stmts = append(stmts, strings.Join(strings.Fields(stmt), " "))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(stmts, "\n"), nil
}
