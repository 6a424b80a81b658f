package backup

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/domain"
)

type fakeUploader struct {
	paths []string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, p string) error {
	f.paths = append(f.paths, p)
	return f.err
}

func newTestManager(t *testing.T, up Uploader) (*Manager, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "backup.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return NewManager(db, filepath.Join(t.TempDir(), "backup"), up), db
}

func seed(t *testing.T, db *gorm.DB) {
	now := time.Now()
	require.NoError(t, db.Create(&domain.Product{
		ID: 1, Name: "Açılış Çelengi", Price: 1250.5, Category: "Açılış Çelengi",
		InStock: true, Images: []string{"a.jpg"}, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&domain.Order{
		ID: 1753000000000000001, OrderNumber: "CD202403051407091234",
		Items:  []domain.OrderItem{{ProductID: 1, Name: "Açılış Çelengi", Price: 1250.5, Quantity: 1}},
		Total:  1250.5,
		Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusPending,
		DeliveryDate: "2024-03-05T10:00:00Z",
		Notes:        "2024-03-05T10:00:00+03:00",
		CreatedAt:    now, UpdatedAt: now,
	}).Error)
}

func TestCollectionsExcludeBackupLog(t *testing.T) {
	names := Collections()
	assert.Contains(t, names, "orders")
	assert.Contains(t, names, "products")
	assert.NotContains(t, names, "sys_backup")
}

func TestTimeColumnsFollowModel(t *testing.T) {
	m, db := newTestManager(t, nil)
	cols, err := m.timeColumns(db, "orders")
	require.NoError(t, err)
	assert.True(t, cols["created_at"])
	assert.True(t, cols["updated_at"])
	assert.False(t, cols["delivery_date"])
	assert.False(t, cols["notes"])

	row := map[string]interface{}{"created_at": "2024-03-05T10:00:00Z", "delivery_date": "2024-03-05T10:00:00Z"}
	normalizeRow(row, cols)
	assert.IsType(t, time.Time{}, row["created_at"])
	assert.Equal(t, "2024-03-05T10:00:00Z", row["delivery_date"])
}

func TestCreateAndRestore(t *testing.T) {
	up := &fakeUploader{}
	m, db := newTestManager(t, up)
	seed(t, db)
	ctx := context.Background()

	b, err := m.Create(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, b.Status)
	assert.True(t, b.Uploaded)
	assert.Equal(t, int64(1), b.Collections["products"])
	assert.Equal(t, int64(1), b.Collections["orders"])
	assert.Positive(t, b.Size)
	require.Len(t, up.paths, 1)
	_, err = os.Stat(m.Path(b))
	require.NoError(t, err)

	// change the data after the backup
	require.NoError(t, db.Where("1 = 1").Delete(&domain.Order{}).Error)
	require.NoError(t, db.Model(&domain.Product{}).Where("id = ?", 1).Update("price", 1).Error)

	counts, err := m.Restore(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["orders"])

	var o domain.Order
	require.NoError(t, db.First(&o).Error)
	assert.Equal(t, int64(1753000000000000001), o.ID)
	assert.Equal(t, "CD202403051407091234", o.OrderNumber)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 1250.5, o.Items[0].Price)
	assert.Equal(t, "2024-03-05T10:00:00Z", o.DeliveryDate)
	assert.Equal(t, "2024-03-05T10:00:00+03:00", o.Notes)
	assert.False(t, o.CreatedAt.IsZero())

	var p domain.Product
	require.NoError(t, db.First(&p, 1).Error)
	assert.Equal(t, 1250.5, p.Price)
	assert.Equal(t, []string{"a.jpg"}, p.Images)

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUploadFailureKeepsBackup(t *testing.T) {
	m, db := newTestManager(t, &fakeUploader{err: stderrors.New("connection refused")})
	seed(t, db)
	b, err := m.Create(context.Background(), TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, b.Status)
	assert.False(t, b.Uploaded)
	assert.Contains(t, b.Message, "connection refused")
}

func TestPruneAndDelete(t *testing.T) {
	m, db := newTestManager(t, nil)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		b := domain.Backup{
			ID:        int64(i + 1),
			Filename:  "backup-" + string(rune('a'+i)) + ".json.gz",
			Status:    StatusSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&b).Error)
	}

	removed, err := m.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(4), list[0].ID)
	assert.Equal(t, int64(3), list[1].ID)

	require.NoError(t, m.Delete(ctx, 4))
	assert.ErrorIs(t, m.Delete(ctx, 4), ErrNotFound)
	_, err = m.Restore(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSftpUploaderDisabled(t *testing.T) {
	assert.Nil(t, NewSftpUploader(config.SftpConfig{}))
	assert.NotNil(t, NewSftpUploader(config.SftpConfig{Enabled: true, Host: "backup.example.com"}))
}
