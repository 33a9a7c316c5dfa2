package postgres

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

func TestDSN(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", User: "bot", Password: "pw", Database: "sandwich"})
	want := "postgres://bot:pw@db:5432/sandwich?sslmode=disable"
	if got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	if got := DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}); got != "postgres://x" {
		t.Fatalf("explicit DSN not preferred: %q", got)
	}
}

func TestListQuery(t *testing.T) {
	since := time.Unix(100, 0)
	q, args := listQuery("SELECT x FROM t WHERE 1=1", "ts", domain.ListOpts{Since: &since, Offset: 20})
	want := "SELECT x FROM t WHERE 1=1 AND ts >= $1 ORDER BY ts DESC LIMIT $2 OFFSET $3"
	if q != want {
		t.Fatalf("query = %q\nwant    %q", q, want)
	}
	if len(args) != 3 || args[1] != defaultListLimit || args[2] != 20 {
		t.Fatalf("args = %v", args)
	}

	q, args = listQuery("SELECT x FROM t WHERE 1=1", "ts", domain.ListOpts{Limit: 5})
	if strings.Contains(q, "OFFSET") || len(args) != 1 || args[0] != 5 {
		t.Fatalf("query = %q args = %v", q, args)
	}
}

func TestNumericRoundTrip(t *testing.T) {
	v, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	n := numeric(v)
	if !n.Valid || n.Int.Cmp(v) != 0 || n.Exp != 0 {
		t.Fatalf("numeric = %+v", n)
	}
	if numeric(nil).Valid {
		t.Fatal("nil should encode as NULL")
	}

	s := v.String()
	back, err := parseNumeric(&s)
	if err != nil || back.Cmp(v) != 0 {
		t.Fatalf("parseNumeric = %v, %v", back, err)
	}
	if back, err := parseNumeric(nil); back != nil || err != nil {
		t.Fatalf("parseNumeric(nil) = %v, %v", back, err)
	}
	bad := "1.5"
	if _, err := parseNumeric(&bad); err == nil {
		t.Fatal("expected error for fractional value")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("names = %v", names)
	}
	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"opportunities", "attempts", "audit_log"} {
		if !strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("migration does not create %s", table)
		}
	}
}

type memOpportunities struct{ rows []domain.Opportunity }

func (m *memOpportunities) Insert(_ context.Context, opp domain.Opportunity) error {
	m.rows = append(m.rows, opp)
	return nil
}
func (m *memOpportunities) ListRecent(context.Context, domain.ListOpts) ([]domain.Opportunity, error) {
	return m.rows, nil
}

type memAttempts struct{ rows map[string]domain.ExecutionAttempt }

func (m *memAttempts) Upsert(_ context.Context, a domain.ExecutionAttempt) error {
	m.rows[a.ID] = a
	return nil
}
func (m *memAttempts) GetByID(_ context.Context, id string) (domain.ExecutionAttempt, error) {
	a, ok := m.rows[id]
	if !ok {
		return a, domain.ErrNotFound
	}
	return a, nil
}
func (m *memAttempts) ListRecent(context.Context, domain.ListOpts) ([]domain.ExecutionAttempt, error) {
	return nil, nil
}

func TestSinkAppendsOpportunitiesAndUpsertsAttempts(t *testing.T) {
	opps := &memOpportunities{}
	atts := &memAttempts{rows: map[string]domain.ExecutionAttempt{}}
	sink := &Sink{Opportunities: opps, Attempts: atts}
	ctx := context.Background()

	key := common.HexToHash("0xabc")
	for _, st := range []domain.OpportunityState{domain.OppAdmitted, domain.OppDispatched} {
		if err := sink.OpportunityUpdated(ctx, domain.Opportunity{Key: key, State: st}); err != nil {
			t.Fatal(err)
		}
	}
	if len(opps.rows) != 2 {
		t.Fatalf("opportunity rows = %d, want 2", len(opps.rows))
	}

	a := domain.ExecutionAttempt{ID: "a", State: domain.AttemptPending}
	_ = sink.AttemptUpdated(ctx, a)
	a.State = domain.AttemptConfirmed
	_ = sink.AttemptUpdated(ctx, a)
	got, err := atts.GetByID(ctx, "a")
	if err != nil || got.State != domain.AttemptConfirmed || len(atts.rows) != 1 {
		t.Fatalf("attempt = %+v, err = %v, rows = %d", got, err, len(atts.rows))
	}
}
