package domain

import "time"

type CartItem struct {
	ProductID int64     `json:"product_id" bson:"product_id"`
	Quantity  int32     `json:"quantity" bson:"quantity"`
	AddedAt   time.Time `json:"added_at" bson:"added_at"`
}

type Cart struct {
	UserID    string     `json:"user_id" bson:"user_id"`
	Items     []CartItem `json:"items" bson:"items"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}
