package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/CodeDript/codedript-server-sub001/internal/blockchain"
	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
)

var testDBCounter int64

// setupTestDB 创建隔离的内存数据库
func setupTestDB(t *testing.T) *gorm.DB {
	counter := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:svctestdb%d?mode=memory&cache=shared", counter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.User{},
		&model.Gig{},
		&model.Agreement{},
		&model.Milestone{},
		&model.ChangeRequest{},
		&model.Transaction{},
	)
	require.NoError(t, err)

	return db
}

// fakeOracle 返回预置链上事实的预言机
type fakeOracle struct {
	details map[string]*blockchain.TransactionDetails
	err     error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{details: make(map[string]*blockchain.TransactionDetails)}
}

func (f *fakeOracle) put(txHash string, value decimal.Decimal, confirmations int64) {
	f.details[txHash] = &blockchain.TransactionDetails{
		TxHash:        txHash,
		Network:       "sepolia",
		Value:         value,
		Confirmations: confirmations,
		BlockNumber:   100,
		BlockHash:     "0xblock" + txHash,
		From:          "0xfrom",
		To:            "0xto",
		Timestamp:     time.Now().Unix(),
	}
}

func (f *fakeOracle) FetchTransactionDetails(_ context.Context, txHash, _ string) (*blockchain.TransactionDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.details[txHash]
	if !ok {
		return nil, blockchain.ErrTxNotFound
	}
	return d, nil
}

func (f *fakeOracle) Healthy(context.Context, string) bool {
	return f.err == nil
}

// capturePublisher 记录发布的事件名
type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) Publish(_ context.Context, event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) has(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

// testEnv 服务层测试环境
type testEnv struct {
	db *gorm.DB

	users      repository.UserRepository
	gigs       repository.GigRepository
	agreements repository.AgreementRepository
	crs        repository.ChangeRequestRepository
	txs        repository.TransactionRepository

	oracle *fakeOracle
	events *capturePublisher

	stats        *StatisticsService
	userSvc      *UserService
	gigSvc       *GigService
	agreementSvc *AgreementService
	crSvc        *ChangeRequestService
	txSvc        *TransactionService
}

func newTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)

	env := &testEnv{
		db:         db,
		users:      repository.NewUserRepository(db),
		gigs:       repository.NewGigRepository(db),
		agreements: repository.NewAgreementRepository(db),
		crs:        repository.NewChangeRequestRepository(db),
		txs:        repository.NewTransactionRepository(db),
		oracle:     newFakeOracle(),
		events:     &capturePublisher{},
	}
	env.stats = NewStatisticsService(env.users)
	env.userSvc = NewUserService(env.users, "test-secret", time.Hour)
	env.gigSvc = NewGigService(env.gigs, env.users)
	env.agreementSvc = NewAgreementService(env.agreements, env.gigs, env.users, env.stats, env.events)
	env.crSvc = NewChangeRequestService(env.crs, env.agreements, env.events)
	env.txSvc = NewTransactionService(env.txs, env.agreements, env.crs, env.stats, env.oracle, env.events, 1)
	return env
}

var seedCounter int64

// seedUser 直接入库一个用户
func (e *testEnv) seedUser(t *testing.T, role model.UserRole) *model.User {
	n := atomic.AddInt64(&seedCounter, 1)
	user := &model.User{
		ID:           fmt.Sprintf("user-%d", n),
		Username:     fmt.Sprintf("user%d", n),
		Email:        fmt.Sprintf("user%d@example.com", n),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

// seedGig 入库单套餐服务
func (e *testEnv) seedGig(t *testing.T, developerID string, price decimal.Decimal, milestones ...string) *model.Gig {
	n := atomic.AddInt64(&seedCounter, 1)
	gig := &model.Gig{
		ID:          fmt.Sprintf("gig-%d", n),
		DeveloperID: developerID,
		Title:       "Test Gig",
		Status:      model.GigStatusActive,
	}
	require.NoError(t, gig.SetPackages([]model.GigPackage{{
		PackageID:  "basic",
		Name:       "Basic",
		Price:      price,
		Milestones: milestones,
	}}))
	require.NoError(t, e.gigs.Create(context.Background(), gig))
	return gig
}

// seedAgreement 创建 client/developer 双方与一份 pending 协议
func (e *testEnv) seedAgreement(t *testing.T, totalValue decimal.Decimal) (client, developer *model.User, agreement *model.Agreement) {
	client = e.seedUser(t, model.UserRoleClient)
	developer = e.seedUser(t, model.UserRoleDeveloper)
	gig := e.seedGig(t, developer.ID, totalValue, "design", "build")

	agreement, err := e.agreementSvc.Create(context.Background(), client.ID, &dto.CreateAgreementRequest{
		GigID:     gig.ID,
		PackageID: "basic",
	})
	require.NoError(t, err)
	return client, developer, agreement
}

// transition 流转辅助
func (e *testEnv) transition(t *testing.T, actorID, agreementID, status string) *model.Agreement {
	a, err := e.agreementSvc.TransitionStatus(context.Background(), actorID, agreementID,
		&dto.TransitionStatusRequest{Status: status})
	require.NoError(t, err)
	return a
}

// reloadUser 重读用户统计
func (e *testEnv) reloadUser(t *testing.T, id string) *model.User {
	u, err := e.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
