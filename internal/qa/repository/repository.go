package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories QA仓库集合
type Repositories struct {
	db          *gorm.DB
	Component   *ComponentRepository
	Style       *StyleRepository
	Link        *LinkRepository
	Test        *TestRepository
	Supplier    *SupplierRepository
	Factory     *FactoryRepository
	Inspection  *InspectionRepository
	Workbook    *WorkbookRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建QA仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Component:   NewComponentRepository(db),
		Style:       NewStyleRepository(db),
		Link:        NewLinkRepository(db),
		Test:        NewTestRepository(db),
		Supplier:    NewSupplierRepository(db),
		Factory:     NewFactoryRepository(db),
		Inspection:  NewInspectionRepository(db),
		Workbook:    NewWorkbookRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// DB 底层连接
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// WithTx 绑定到事务，事务内的所有读写必须走返回的仓库
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

// notFound 把gorm的记录不存在转换为ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// nextCode 生成 {prefix}-{year}-{4位} 编码
func nextCode(db *gorm.DB, model interface{}, column, prefix string) (string, error) {
	year := time.Now().Format("2006")
	head := fmt.Sprintf("%s-%s-", prefix, year)

	var maxCode string
	err := db.Model(model).
		Select(fmt.Sprintf("COALESCE(MAX(%s), '')", column)).
		Where(column+" LIKE ?", head+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, head+"%04d", &seq)
	}
	seq++
	return fmt.Sprintf("%s%04d", head, seq), nil
}
