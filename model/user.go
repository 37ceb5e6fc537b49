package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User is a wallet holder. Balance is USD.
type User struct {
	Id      int     `json:"id" gorm:"primaryKey;autoIncrement"`
	Email   string  `json:"email" gorm:"uniqueIndex;size:256"`
	Balance float64 `json:"balance"`
}

func (User) TableName() string {
	return "users"
}

// GetUserBalance reads the wallet balance straight from storage. Callers on
// the hot path go through CacheGetUserBalance instead.
func GetUserBalance(userId int) (float64, error) {
	var user User
	err := DB.Select("balance").Where("id = ?", userId).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.Errorf("user %d not found", userId)
		}
		return 0, errors.Wrap(err, "query user balance")
	}
	return user.Balance, nil
}

// DebitUser withdraws amount from the wallet and records a ledger row. The
// debit is idempotent on requestId: replays (shutdown retries, duplicate
// flushes) insert nothing and charge nothing.
func DebitUser(userId int, amount float64, requestId, modelId, provider string) error {
	if amount < 0 {
		return errors.Errorf("negative debit amount %f", amount)
	}
	err := DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoNothing: true,
		}).Create(&Transaction{
			UserId:    userId,
			RequestId: requestId,
			Amount:    -amount,
			ModelId:   modelId,
			Provider:  provider,
		})
		if res.Error != nil {
			return errors.Wrap(res.Error, "insert ledger row")
		}
		if res.RowsAffected == 0 {
			// Already debited for this request.
			return nil
		}
		if err := tx.Model(&User{}).Where("id = ?", userId).
			Update("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
			return errors.Wrap(err, "decrease balance")
		}
		return nil
	})
	if err != nil {
		return err
	}
	CacheInvalidateUserBalance(userId)
	return nil
}

// CreditUser deposits amount into the wallet with a ledger row.
func CreditUser(userId int, amount float64, requestId string) error {
	if amount < 0 {
		return errors.Errorf("negative credit amount %f", amount)
	}
	err := DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Transaction{
			UserId:    userId,
			RequestId: requestId,
			Amount:    amount,
		}).Error; err != nil {
			return errors.Wrap(err, "insert ledger row")
		}
		if err := tx.Model(&User{}).Where("id = ?", userId).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return errors.Wrap(err, "increase balance")
		}
		return nil
	})
	if err != nil {
		return err
	}
	CacheInvalidateUserBalance(userId)
	return nil
}

// GetUserById loads a full user row.
func GetUserById(userId int) (*User, error) {
	var user User
	err := DB.Where("id = ?", userId).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Errorf("user %d not found", userId)
		}
		return nil, errors.Wrap(err, "query user")
	}
	return &user, nil
}
