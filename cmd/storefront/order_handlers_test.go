package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taller7/muebleria-api/internal/catalog"
	"github.com/taller7/muebleria-api/internal/identity"
	ord "github.com/taller7/muebleria-api/internal/order"
)

func init() {
	gin.SetMode(gin.TestMode)
	gin.DefaultWriter = io.Discard
}

// stubCatalog implements catalog.Repository in memory.
type stubCatalog struct {
	products map[string]*catalog.Product
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{products: map[string]*catalog.Product{}}
}

func (s *stubCatalog) add(name, price string, stock int) string {
	id := uuid.NewString()
	s.products[id] = &catalog.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	return id
}

func (s *stubCatalog) Create(ctx context.Context, p *catalog.Product) error {
	cp := *p
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.products[p.ID] = &cp
	return nil
}

func (s *stubCatalog) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubCatalog) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubCatalog) List(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range s.products {
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	start := q.Offset
	if start > len(out) {
		return []catalog.Product{}, nil
	}
	end := len(out)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return out[start:end], nil
}

func (s *stubCatalog) Update(ctx context.Context, p *catalog.Product, updatePrice bool) error {
	cur, ok := s.products[p.ID]
	if !ok {
		return catalog.ErrNotFound
	}
	if p.Name != "" {
		cur.Name = p.Name
	}
	if p.Description != "" {
		cur.Description = p.Description
	}
	if updatePrice {
		cur.Price = p.Price
	}
	cur.Stock = p.Stock
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *stubCatalog) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := s.products[id]; !ok {
		return false, nil
	}
	delete(s.products, id)
	return true, nil
}

func (s *stubCatalog) DecrementStock(ctx context.Context, id string, qty int) error {
	p, ok := s.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	if p.Stock < qty {
		return &catalog.InsufficientStockError{ProductID: id, Name: p.Name, Available: p.Stock, Requested: qty}
	}
	p.Stock -= qty
	return nil
}

// stubOrders implements ord.Repository in memory.
type stubOrders struct {
	byID   map[string]*ord.Order
	owners map[string]struct{ name, email string }
}

func newStubOrders() *stubOrders {
	return &stubOrders{
		byID:   map[string]*ord.Order{},
		owners: map[string]struct{ name, email string }{},
	}
}

func (s *stubOrders) Create(ctx context.Context, o *ord.Order) error {
	cp := *o
	s.byID[o.ID] = &cp
	return nil
}

func (s *stubOrders) GetByID(ctx context.Context, id string) (*ord.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, ord.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubOrders) ListByOwner(ctx context.Context, userID string) ([]ord.Order, error) {
	var out []ord.Order
	for _, o := range s.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubOrders) ListAll(ctx context.Context) ([]ord.AdminOrder, error) {
	var out []ord.AdminOrder
	for _, o := range s.byID {
		a := ord.AdminOrder{Order: *o}
		if owner, ok := s.owners[o.UserID]; ok {
			a.OwnerName, a.OwnerEmail = owner.name, owner.email
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubOrders) MarkDelivered(ctx context.Context, id string) (*ord.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, ord.ErrNotFound
	}
	if o.IsDelivered {
		return nil, ord.ErrAlreadyDelivered
	}
	now := time.Now().UTC()
	o.IsDelivered = true
	o.DeliveredAt = &now
	cp := *o
	return &cp, nil
}

// stubAuth resolves fixed bearer tokens; register/login are not under test
// here beyond basic plumbing.
type stubAuth struct {
	tokens map[string]identity.Identity
	users  map[string]*identity.User
}

func newStubAuth() *stubAuth {
	return &stubAuth{
		tokens: map[string]identity.Identity{},
		users:  map[string]*identity.User{},
	}
}

func (s *stubAuth) grant(role identity.Role) (token, userID string) {
	userID = uuid.NewString()
	token = uuid.NewString()
	s.tokens[token] = identity.Identity{UserID: userID, Role: role}
	s.users[userID] = &identity.User{ID: userID, Name: "Test User", Email: userID + "@example.com", Role: role}
	return token, userID
}

func (s *stubAuth) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	id, ok := s.tokens[token]
	if !ok {
		return identity.Identity{}, identity.ErrUnauthenticated
	}
	return id, nil
}

func (s *stubAuth) Register(ctx context.Context, name, email, password string) (*identity.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return nil, identity.ErrAlreadyExist
		}
	}
	u := &identity.User{ID: uuid.NewString(), Name: name, Email: email, Role: identity.RoleUser}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubAuth) Login(ctx context.Context, email, password string) (string, *identity.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			token := uuid.NewString()
			s.tokens[token] = identity.Identity{UserID: u.ID, Role: u.Role}
			return token, u, nil
		}
	}
	return "", nil, identity.ErrUnauthenticated
}

func (s *stubAuth) Logout(ctx context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

func (s *stubAuth) GetUser(ctx context.Context, id string) (*identity.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

type testEnv struct {
	router  *gin.Engine
	auth    *stubAuth
	catalog *stubCatalog
	orders  *stubOrders
}

func newTestEnv() *testEnv {
	auth := newStubAuth()
	cat := newStubCatalog()
	orders := newStubOrders()
	eng := ord.NewEngine(orders, cat, nil, zap.NewNop())
	return &testEnv{
		router:  newRouter(zap.NewNop(), auth, cat, orders, eng, nil),
		auth:    auth,
		catalog: cat,
		orders:  orders,
	}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func orderBody(productID string, qty int, tax, shipping, total string) map[string]any {
	return map[string]any{
		"orderItems": []map[string]any{
			{"product": productID, "qty": qty, "price": "0.01"},
		},
		"shippingAddress": map[string]any{
			"name":       "Ana Torres",
			"email":      "ana@example.com",
			"address":    "Av. Siempre Viva 742",
			"city":       "Springfield",
			"postalCode": "12345",
			"country":    "MX",
		},
		"taxPrice":      tax,
		"shippingPrice": shipping,
		"totalPrice":    total,
	}
}

func TestCreateOrder_HappyPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	token, userID := env.auth.grant(identity.RoleUser)
	pid := env.catalog.add("Mesa Roble", "15.00", 5)

	// 2 x 15.00 + 3.00 tax + 2.00 shipping
	w := env.do(http.MethodPost, "/orders", token, orderBody(pid, 2, "3.00", "2.00", "35.00"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var got ord.Order
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.UserID != userID {
		t.Fatalf("owner=%q, want %q", got.UserID, userID)
	}
	if len(got.Items) != 1 || !got.Items[0].UnitPrice.Equal(decimal.RequireFromString("15.00")) {
		t.Fatalf("line item must carry the catalog price, got %+v", got.Items)
	}
	if env.catalog.products[pid].Stock != 3 {
		t.Fatalf("stock=%d, want 3", env.catalog.products[pid].Stock)
	}
	if _, ok := env.orders.byID[got.ID]; !ok {
		t.Fatalf("order not persisted")
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	token, _ := env.auth.grant(identity.RoleUser)
	pid := env.catalog.add("Banco Pino", "10.00", 3)

	w := env.do(http.MethodPost, "/orders", token, orderBody(pid, 10, "0", "0", "100.00"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Available: 3, Requested: 10") {
		t.Fatalf("body=%s must name available and requested counts", w.Body.String())
	}
	if env.catalog.products[pid].Stock != 3 {
		t.Fatalf("stock must be untouched")
	}
	if len(env.orders.byID) != 0 {
		t.Fatalf("no order must be persisted")
	}
}

func TestCreateOrder_MissingAddressField(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	token, _ := env.auth.grant(identity.RoleUser)
	pid := env.catalog.add("Silla Nogal", "10.00", 5)

	body := orderBody(pid, 1, "0", "0", "10.00")
	body["shippingAddress"].(map[string]any)["city"] = ""
	w := env.do(http.MethodPost, "/orders", token, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "shippingAddress.city") {
		t.Fatalf("body=%s must name the missing field", w.Body.String())
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	pid := env.catalog.add("Silla Nogal", "10.00", 5)

	w := env.do(http.MethodPost, "/orders", "", orderBody(pid, 1, "0", "0", "10.00"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", w.Code)
	}
}

func TestGetOrder_AccessControl(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ownerTok, ownerID := env.auth.grant(identity.RoleUser)
	otherTok, _ := env.auth.grant(identity.RoleUser)
	adminTok, _ := env.auth.grant(identity.RoleAdmin)

	oid := uuid.NewString()
	env.orders.byID[oid] = &ord.Order{ID: oid, UserID: ownerID, CreatedAt: time.Now().UTC()}

	if w := env.do(http.MethodGet, "/orders/not-a-uuid", ownerTok, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed id: status=%d, want 400", w.Code)
	}
	if w := env.do(http.MethodGet, "/orders/"+uuid.NewString(), ownerTok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("absent id: status=%d, want 404", w.Code)
	}
	if w := env.do(http.MethodGet, "/orders/"+oid, otherTok, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("stranger: status=%d, want 401", w.Code)
	}
	if w := env.do(http.MethodGet, "/orders/"+oid, ownerTok, nil); w.Code != http.StatusOK {
		t.Fatalf("owner: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodGet, "/orders/"+oid, adminTok, nil); w.Code != http.StatusOK {
		t.Fatalf("admin: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestGetOrder_OwnerlessIsAdminOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	userTok, _ := env.auth.grant(identity.RoleUser)
	adminTok, _ := env.auth.grant(identity.RoleAdmin)

	oid := uuid.NewString()
	env.orders.byID[oid] = &ord.Order{ID: oid} // legacy order, no owner

	if w := env.do(http.MethodGet, "/orders/"+oid, userTok, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("user on ownerless order: status=%d, want 401", w.Code)
	}
	if w := env.do(http.MethodGet, "/orders/"+oid, adminTok, nil); w.Code != http.StatusOK {
		t.Fatalf("admin on ownerless order: status=%d", w.Code)
	}
}

func TestMyOrders_NewestFirst(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	token, userID := env.auth.grant(identity.RoleUser)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		id := uuid.NewString()
		env.orders.byID[id] = &ord.Order{
			ID:        id,
			UserID:    userID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	// someone else's order must not show up
	strangerOrder := uuid.NewString()
	env.orders.byID[strangerOrder] = &ord.Order{ID: strangerOrder, UserID: uuid.NewString(), CreatedAt: base}

	w := env.do(http.MethodGet, "/orders/myorders", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got []ord.Order
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Fatalf("orders not newest-first: %v", got)
		}
	}
}

func TestAdminOrders_RoleGate(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	userTok, userID := env.auth.grant(identity.RoleUser)
	adminTok, _ := env.auth.grant(identity.RoleAdmin)

	oid := uuid.NewString()
	env.orders.byID[oid] = &ord.Order{ID: oid, UserID: userID, CreatedAt: time.Now().UTC()}
	env.orders.owners[userID] = struct{ name, email string }{"Test User", "test@example.com"}

	if w := env.do(http.MethodGet, "/admin/orders", userTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin: status=%d, want 403", w.Code)
	}

	w := env.do(http.MethodGet, "/admin/orders", adminTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin: status=%d body=%s", w.Code, w.Body.String())
	}
	var got []ord.AdminOrder
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got) != 1 || got[0].OwnerEmail != "test@example.com" {
		t.Fatalf("admin listing must attach owner details, got %+v", got)
	}
}

func TestDeliverOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	adminTok, _ := env.auth.grant(identity.RoleAdmin)

	oid := uuid.NewString()
	env.orders.byID[oid] = &ord.Order{ID: oid, UserID: uuid.NewString()}

	if w := env.do(http.MethodPut, "/admin/orders/"+uuid.NewString()+"/deliver", adminTok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("absent order: status=%d, want 404", w.Code)
	}

	w := env.do(http.MethodPut, "/admin/orders/"+oid+"/deliver", adminTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got ord.Order
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !got.IsDelivered || got.DeliveredAt == nil {
		t.Fatalf("delivery fields not set: %+v", got)
	}

	if w := env.do(http.MethodPut, "/admin/orders/"+oid+"/deliver", adminTok, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("second deliver: status=%d, want 400", w.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv()

	w := env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "s3cret",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status=%d body=%s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "s3cret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status=%d body=%s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login response missing token: %s", w.Body.String())
	}

	if w := env.do(http.MethodGet, "/auth/me", login.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("me: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodPost, "/auth/logout", login.Token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout: status=%d", w.Code)
	}
	if w := env.do(http.MethodGet, "/auth/me", login.Token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: status=%d, want 401", w.Code)
	}
}

