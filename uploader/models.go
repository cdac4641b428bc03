package uploader

import "time"

// AoiResult is one board's inspection outcome, mapped field-for-field onto
// the SMT_AOI_RESULTS table that external reporting tools query. Column
// names, sizes and nullability must stay exactly as declared here.
// (SerialNumber, DateTime) is the composite primary key; a duplicate insert
// is silently ignored rather than rejected (see Store.Insert).
type AoiResult struct {
	SerialNumber string    `gorm:"column:Serial_NMBR;primaryKey;size:30" validate:"required,max=30"`
	DateTime     time.Time `gorm:"column:Date_Time;primaryKey" validate:"required"`
	BoardNumber  uint16    `gorm:"column:Board_NMBR;not null" validate:"required"`
	Program      string    `gorm:"column:Program;size:30;not null" validate:"required,max=30"`
	Station      string    `gorm:"column:Station;size:30;not null" validate:"required,max=30"`
	// Operator is nil for AOI/AXI machine results and set only for repair
	// station results. NULL and empty string are distinct on retrieval.
	Operator    *string `gorm:"column:Operator;size:30" validate:"omitempty,max=30"`
	Result      string  `gorm:"column:Result;size:10;not null" validate:"required,max=10"`
	Failed      *string `gorm:"column:Failed;type:text"`
	PseudoError *string `gorm:"column:Pseudo_error;type:text"`
}

func (AoiResult) TableName() string { return "SMT_AOI_RESULTS" }

// ProcessedLog tracks source XML files already ingested, so reruns over the
// same directory window (cursor minus delta) skip them without reparsing.
type ProcessedLog struct {
	ID          uint   `gorm:"primaryKey"`
	Path        string `gorm:"uniqueIndex:uniq_path_sha;size:1024"`
	SHA256      string `gorm:"uniqueIndex:uniq_path_sha;size:64"`
	SizeBytes   int64
	ModUnixNano int64
	ProcessedAt time.Time `gorm:"index"`
	Boards      int
	LastError   string `gorm:"type:text"`
}
