//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	httpserver "luxury_villas/internal/adapters/http_server"
	redisad "luxury_villas/internal/adapters/redis"
	"luxury_villas/internal/adapters/sheets"
	"luxury_villas/internal/app"
	"luxury_villas/internal/domain"
	"luxury_villas/internal/shared"
	mysqlrepo "luxury_villas/internal/storage/mysql"
)

// ---------- helpers ----------
func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- the test ----------

// Sheet endpoint on MySQL, site stack on Redis: listings resolve from the
// remote tier, then from the cache once the endpoint goes away.
func TestHTTP_EndToEnd_RemoteThenCache(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=villas",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "villas")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Apply your real migrations
	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()
	for _, l := range []domain.Listing{
		{Name: "Villa Serenity", Place: "Goa", Price: 1000, Features: []string{"Pool"}},
		{Name: "Casa del Mar", Place: "Alibaug", Price: 2200},
	} {
		if _, err := repo.SaveListing(ctx, l); err != nil {
			t.Fatalf("seed listing: %v", err)
		}
	}

	// Sheet endpoint
	backend := httpserver.New(5 * time.Second)
	backend.MountEndpoint(app.NewEndpoint(repo, bcrypt.MinCost))
	sheetTS := httptest.NewServer(backend.Mux())
	defer sheetTS.Close()

	// Site stack
	mr := miniredis.RunT(t)
	cache := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })

	sheet, err := sheets.New(sheetTS.URL+"/exec", 50)
	if err != nil {
		t.Fatalf("sheet client: %v", err)
	}
	coll := app.NewCollections(cache)
	listings := app.NewListingService(sheet, coll, app.NewStore(), time.Second, shared.DefaultListings)
	accounts, err := app.NewAccountService(sheet, coll, "admin@villas.test", "admin-pass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	reservations := app.NewReservationService(sheet, listings, accounts, coll, nil)
	site := httpserver.New(5 * time.Second)
	site.MountHandlers(&httpserver.Handlers{
		Listings:     listings,
		Accounts:     accounts,
		Reservations: reservations,
		Sessions:     app.NewSessions("e2e-secret"),
	})
	siteTS := httptest.NewServer(site.Mux())
	defer siteTS.Close()

	getListings := func() app.Result[domain.Listing] {
		t.Helper()
		res, err := http.Get(siteTS.URL + "/v1/listings")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status %d", res.StatusCode)
		}
		var body app.Result[domain.Listing]
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body
	}

	first := getListings()
	if !first.OK || first.ServedBy != app.TierRemote || len(first.Collection) != 2 {
		t.Fatalf("expected 2 remote listings, got %+v", first)
	}
	if first.Collection[0].Name != "Villa Serenity" || len(first.Collection[0].Features) != 1 {
		t.Fatalf("unexpected listing: %+v", first.Collection[0])
	}

	// register and book through the sheet
	acc, err := accounts.Register(ctx, domain.Registration{FirstName: "Ana", LastName: "Diaz", Email: "ana@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	booking, err := reservations.Create(ctx, domain.BookingRequest{
		AccountID: acc.ID, ListingID: 1, GuestCount: 2,
		CheckIn: domain.NewDate(2024, 1, 1), CheckOut: domain.NewDate(2024, 1, 4),
	})
	if err != nil || booking.TotalPrice != 3000 {
		t.Fatalf("booking: %+v %v", booking, err)
	}
	// the site and the endpoint each keep their own account ids
	onSheet, err := repo.GetCredential(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("sheet credential: %v", err)
	}
	var stored int
	if err := db.QueryRow(`SELECT COUNT(*) FROM reservations WHERE account_id = ?`, onSheet.ID).Scan(&stored); err != nil || stored != 1 {
		t.Fatalf("reservation not stored on the endpoint: %d %v", stored, err)
	}
	if mine := reservations.ListForAccount(ctx, acc.ID); len(mine) != 1 || mine[0].ID != booking.ID {
		t.Fatalf("local mirror under the site's account id: %+v", mine)
	}
	me, err := accounts.Get(ctx, acc.ID)
	if err != nil || me.Email != "ana@example.com" || me.IsAdmin() {
		t.Fatalf("site account: %+v %v", me, err)
	}

	// endpoint goes away
	sheetTS.Close()

	second := getListings()
	if !second.OK || second.ServedBy != app.TierCache || len(second.Collection) != 2 {
		t.Fatalf("expected cached listings, got %+v", second)
	}
	if _, err := accounts.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("offline login with mirrored account: %v", err)
	}
}
