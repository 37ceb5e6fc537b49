package model

import "time"

// Transaction is one wallet ledger row. Negative amounts are debits. The
// unique request_id index is what makes debits at-most-once.
type Transaction struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId    int       `json:"user_id" gorm:"index;not null"`
	RequestId string    `json:"request_id" gorm:"uniqueIndex;size:64;not null"`
	Amount    float64   `json:"amount"`
	ModelId   string    `json:"model_id" gorm:"size:128"`
	Provider  string    `json:"provider" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
