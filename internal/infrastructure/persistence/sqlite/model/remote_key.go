package model

type RemoteKey struct {
	ComicID           int64 `gorm:"column:comic_id;primaryKey;autoIncrement:false"`
	PrevKey           *int  `gorm:"column:prev_key"`
	NextKey           *int  `gorm:"column:next_key"`
	CreatedAtUnixNano int64 `gorm:"column:created_at_unix_nano;not null;index"`
}

func (RemoteKey) TableName() string {
	return "remote_keys"
}
