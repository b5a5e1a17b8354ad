package model

type KV struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
	ExpiresAt int64  `gorm:"column:expires_at_unix_nano;not null;default:0"`
}

func (KV) TableName() string {
	return "kv_entries"
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&Comic{}, &RemoteKey{}, &KV{}}
}
