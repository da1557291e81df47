package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"points-service/internal/database"
	"points-service/internal/models"
)

// Tests run against DATABASE_URL when set (postgres:// or postgresql:// URLs
// use the postgres driver, anything else is a mysql DSN). Otherwise they use a
// file backed SQLite database in WAL mode with several connections, so
// concurrent tests really overlap. _txlock=immediate makes every transaction
// take the write lock at BEGIN and busy_timeout lets contenders wait for it.
var (
	testDB  *gorm.DB
	testDir string
)

func setup() {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var err error
	dsn := os.Getenv("DATABASE_URL")
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		testDB, err = gorm.Open(postgres.Open(dsn), cfg)
	case dsn != "":
		testDB, err = gorm.Open(mysql.Open(dsn), cfg)
	default:
		testDir, err = os.MkdirTemp("", "points-ledger-test")
		if err != nil {
			log.Fatalf("create test dir: %v", err)
		}
		path := filepath.Join(testDir, "ledger.db")
		testDB, err = gorm.Open(sqlite.Open("file:"+path+
			"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate"), cfg)
		if err == nil {
			sqlDB, _ := testDB.DB()
			sqlDB.SetMaxOpenConns(8)
		}
	}
	if err != nil {
		log.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(testDB); err != nil {
		log.Fatalf("migrate test database: %v", err)
	}
	if err := registerRacer(testDB); err != nil {
		log.Fatalf("register racer callback: %v", err)
	}
}

func cleanup() {
	testDB.Exec("DELETE FROM point_transactions")
	testDB.Exec("DELETE FROM users")
}

// racer, once armed, rewrites the status of one transaction right before the
// next update of point_transactions runs, inside the same database
// transaction. It reproduces a competing decision committing between the
// locked read and the guarded write, on any driver.
var racer struct {
	sync.Mutex
	id     string
	status models.TransactionStatus
}

func registerRacer(db *gorm.DB) error {
	return db.Callback().Update().Before("gorm:update").Register("test:racer", func(tx *gorm.DB) {
		if tx.Statement.Table != "point_transactions" {
			return
		}
		racer.Lock()
		id, status := racer.id, racer.status
		racer.id = ""
		racer.Unlock()
		if id == "" {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE point_transactions SET status = ? WHERE id = ?", string(status), id)
	})
}

func armRacer(t *testing.T, id string, status models.TransactionStatus) {
	t.Helper()
	racer.Lock()
	racer.id, racer.status = id, status
	racer.Unlock()
	t.Cleanup(func() {
		racer.Lock()
		racer.id = ""
		racer.Unlock()
	})
}

func TestMain(m *testing.M) {
	setup()
	code := m.Run()
	cleanup()
	if testDir != "" {
		sqlDB, _ := testDB.DB()
		_ = sqlDB.Close()
		_ = os.RemoveAll(testDir)
	}
	os.Exit(code)
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

// newLedger returns a ledger whose clock is fixed at baseTime.
func newLedger(t *testing.T) *LedgerService {
	t.Helper()
	t.Cleanup(cleanup)
	s := NewLedgerService(testDB, nil, nullLogger())
	s.Now = func() time.Time { return baseTime }
	return s
}

func createUser(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, testDB.Create(&models.User{ID: id, Username: "user"}).Error)
}

func loadUser(t *testing.T, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, testDB.First(&u, "id = ?", id).Error)
	return u
}

func loadTransaction(t *testing.T, id string) models.PointTransaction {
	t.Helper()
	var trx models.PointTransaction
	require.NoError(t, testDB.First(&trx, "id = ?", id).Error)
	return trx
}

func createPending(t *testing.T, s *LedgerService, userID uint, points int, ref string) *models.PointTransaction {
	t.Helper()
	dto := CreateTransactionDTO{
		UserId:      userID,
		ActionType:  models.ActionUploadExercise,
		Points:      points,
		Description: "test award",
	}
	if ref != "" {
		dto.ReferenceId = &ref
	}
	trx, err := s.Create(context.Background(), dto)
	require.NoError(t, err)
	return trx
}

// assertInvariants checks that stored balances equal the sums over the
// user's pending and approved transactions.
func assertInvariants(t *testing.T, userID uint) {
	t.Helper()
	u := loadUser(t, userID)
	pending, err := sumPoints(testDB, userID, models.StatusPending)
	require.NoError(t, err)
	approved, err := sumPoints(testDB, userID, models.StatusApproved)
	require.NoError(t, err)
	require.Equal(t, pending, u.PendingPoints, "pending balance drifted")
	require.Equal(t, approved, u.AvailablePoints, "available balance drifted")
}
