package license

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fanfan-translator/pkg/db/pagination"
	"fanfan-translator/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixedGenerator hands out codes from a list, repeating the last one.
type fixedGenerator struct {
	mu    sync.Mutex
	codes []string
	i     int
}

func (g *fixedGenerator) NextLicenseCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", errors.New("exhausted")
	}
	c := g.codes[min(g.i, len(g.codes)-1)]
	g.i++
	return c, nil
}

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	c := &clock{t: epoch}
	return NewService(NewRepository(db, node), nil, c.Now), c
}

func TestGenerateCreatesUniqueCodes(t *testing.T) {
	svc, _ := newTestService(t)

	codes, err := svc.Generate(context.Background(), 25, 30)
	require.NoError(t, err)
	require.Len(t, codes, 25)

	seen := map[string]bool{}
	for _, lc := range codes {
		require.True(t, IsCode(lc.Code), lc.Code)
		require.Equal(t, 30, lc.Days)
		require.False(t, lc.Used)
		require.NotZero(t, lc.ID)
		require.False(t, seen[lc.Code])
		seen[lc.Code] = true
	}
}

func TestGenerateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, 0, 30)
	require.ErrorIs(t, err, ErrInvalidCount)
	_, err = svc.Generate(ctx, MaxBatch+1, 30)
	require.ErrorIs(t, err, ErrInvalidCount)
	_, err = svc.Generate(ctx, 1, 0)
	require.ErrorIs(t, err, ErrInvalidDays)
}

func TestGenerateSkipsPersistentCollision(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	gen := &fixedGenerator{codes: []string{"FANVIPAAAAAAAAAA"}}
	svc := NewService(NewRepository(db, node), gen, func() time.Time { return epoch })

	codes, err := svc.Generate(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	require.Equal(t, 1+2*maxCollisionRetries, gen.i)
}

func TestIsCode(t *testing.T) {
	require.True(t, IsCode("FANVIPABCDE12345"))
	require.True(t, IsCode("  fanvipabcde12345 "))
	require.False(t, IsCode("FANVIPABCDE1234"))
	require.False(t, IsCode("FANVIPABCDE123456"))
	require.False(t, IsCode("FANVIP-BCDE12345"))
	require.False(t, IsCode("hello"))
}

func TestRedeemNewMember(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	codes, err := svc.Generate(ctx, 1, 30)
	require.NoError(t, err)

	r, err := svc.Redeem(ctx, strings.ToLower(codes[0].Code), "U1")
	require.NoError(t, err)
	require.Equal(t, 30, r.Days)
	require.True(t, r.ExpireAt.Equal(epoch.Add(30*24*time.Hour)))

	m, err := svc.Member(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, MemberActive, m.Status)
	require.Equal(t, r.MemberID, m.ID)
}

func TestRedeemExtendsActiveMember(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	codes, err := svc.Generate(ctx, 2, 10)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, codes[0].Code, "U1")
	require.NoError(t, err)

	c.Advance(3 * 24 * time.Hour)
	r, err := svc.Redeem(ctx, codes[1].Code, "U1")
	require.NoError(t, err)
	require.True(t, r.ExpireAt.Equal(epoch.Add(20*24*time.Hour)), r.ExpireAt)
}

func TestRedeemLapsedMemberStartsFromNow(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	codes, err := svc.Generate(ctx, 2, 5)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, codes[0].Code, "U1")
	require.NoError(t, err)

	c.Advance(8 * 24 * time.Hour)
	r, err := svc.Redeem(ctx, codes[1].Code, "U1")
	require.NoError(t, err)
	require.True(t, r.ExpireAt.Equal(c.Now().Add(5*24*time.Hour)))
}

func TestRedeemDistinguishesUnknownAndUsed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Redeem(ctx, "FANVIPZZZZZZZZZZ", "U1")
	require.ErrorIs(t, err, ErrCodeNotFound)

	codes, err := svc.Generate(ctx, 1, 30)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, codes[0].Code, "U1")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, codes[0].Code, "U2")
	require.ErrorIs(t, err, ErrCodeUsed)

	// The rejected redemption rolls back the member it created.
	_, err = svc.Member(ctx, "U2")
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRedeemConcurrentlyExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	codes, err := svc.Generate(ctx, 1, 30)
	require.NoError(t, err)

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		used int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Redeem(ctx, codes[0].Code, fmt.Sprintf("U%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrCodeUsed):
				used++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, n-1, used)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Generate(ctx, 5, 30)
	require.NoError(t, err)

	page, info, err := svc.List(ctx, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, info.HasMore)
	require.Equal(t, created[4].Code, page[0].Code)
	require.Equal(t, created[3].Code, page[1].Code)

	var all []LicenseCode
	all = append(all, page...)
	for info.HasMore {
		page, info, err = svc.List(ctx, pagination.Pagination{Cursor: info.NextCursor, Limit: 2})
		require.NoError(t, err)
		all = append(all, page...)
	}
	require.Len(t, all, 5)
	require.Equal(t, created[0].Code, all[4].Code)
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.List(context.Background(), pagination.Pagination{Cursor: "%%%"})
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestExportWritesCSV(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	codes, err := svc.Generate(ctx, 2, 15)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, codes[1].Code, "U1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf, 0))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, exportHeader, records[0])

	require.Equal(t, codes[1].Code, records[1][0])
	require.Equal(t, "15", records[1][1])
	require.Equal(t, "1", records[1][2])
	require.NotEmpty(t, records[1][3])
	require.Equal(t, epoch.Format(time.RFC3339), records[1][4])

	require.Equal(t, codes[0].Code, records[2][0])
	require.Equal(t, "0", records[2][2])
	require.Empty(t, records[2][3])
	require.Empty(t, records[2][4])
}

func TestExpireMembers(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	codes, err := svc.Generate(ctx, 2, 1)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, codes[0].Code, "U1")
	require.NoError(t, err)

	n, err := svc.ExpireMembers(ctx, c.Now())
	require.NoError(t, err)
	require.Zero(t, n)

	c.Advance(25 * time.Hour)
	n, err = svc.ExpireMembers(ctx, c.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	m, err := svc.Member(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, MemberInactive, m.Status)

	require.NoError(t, svc.HandleExpiryTask(ctx, nil))
}

func TestServiceWithoutDatabase(t *testing.T) {
	svc := NewService(NewRepository(nil, nil), nil, nil)
	ctx := context.Background()

	_, err := svc.Generate(ctx, 1, 1)
	require.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.Redeem(ctx, "FANVIPAAAAAAAAAA", "U1")
	require.ErrorIs(t, err, ErrNoDatabase)
	require.ErrorIs(t, svc.Export(ctx, &bytes.Buffer{}, 0), ErrNoDatabase)
}
