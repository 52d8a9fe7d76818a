package store

// NSFWPolicy is a device's policy toward NSFW-flagged images. The zero value,
// NSFWAcceptAll, intentionally matches the image's own NSFWUnknown/0 so that
// an unconfigured device accepts everything — these are deliberately
// separate value spaces (see DESIGN.md's Open Question notes) even though
// both are small integers persisted the same way.
type NSFWPolicy int

const (
	NSFWAcceptAll NSFWPolicy = iota
	NSFWReject
	NSFWRequire
)

// Device is a consumer profile that images are filtered and materialized for.
type Device struct {
	ID                string     `db:"id"`
	Enabled           bool       `db:"enabled"`
	DisplayName       string     `db:"display_name"`
	Slug              string     `db:"slug"`
	NativeWidth       int        `db:"native_width"`
	NativeHeight      int        `db:"native_height"`
	AspectTolerance   float64    `db:"aspect_tolerance"`
	MinWidth          *int       `db:"min_width"`
	MaxWidth          *int       `db:"max_width"`
	MinHeight         *int       `db:"min_height"`
	MaxHeight         *int       `db:"max_height"`
	MinFilesize       *int64     `db:"min_filesize"`
	MaxFilesize       *int64     `db:"max_filesize"`
	NSFWPolicy        NSFWPolicy `db:"nsfw_policy"`
	CreatedAt         EpochTime  `db:"created_at"`
	UpdatedAt         EpochTime  `db:"updated_at"`
}

// Source is an upstream configuration bound to one adapter kind.
type Source struct {
	ID          string    `db:"id"`
	Enabled     bool      `db:"enabled"`
	Name        string    `db:"name"`
	Kind        string    `db:"kind"`
	Params      string    `db:"params"` // opaque JSON, shape owned by the adapter
	LookupLimit int       `db:"lookup_limit"`
	CreatedAt   EpochTime `db:"created_at"`
	UpdatedAt   EpochTime `db:"updated_at"`
}

// Schedule binds a cron expression to a source.
type Schedule struct {
	ID        string    `db:"id"`
	SourceID  string    `db:"source_id"`
	CronExpr  string    `db:"cron_expr"`
	CreatedAt EpochTime `db:"created_at"`
	UpdatedAt EpochTime `db:"updated_at"`
}

// Subscription is a device's opt-in to a source, keyed by the pair.
type Subscription struct {
	DeviceID string `db:"device_id"`
	SourceID string `db:"source_id"`
	Enabled  bool   `db:"enabled"`
}

// RunState is the run lifecycle state; transitions form the DAG documented
// in spec §3.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Run is one execution attempt of a source fetch, scheduled or manual.
type Run struct {
	ID              string        `db:"id"`
	SourceID        *string       `db:"source_id"`
	ScheduleID      *string       `db:"schedule_id"`
	Name            string        `db:"name"`
	State           RunState      `db:"state"`
	Input           string        `db:"input"`  // JSON
	Output          string        `db:"output"` // JSON
	Error           string        `db:"error"`
	ProgressCurrent int           `db:"progress_current"`
	ProgressTotal   int           `db:"progress_total"`
	ProgressMessage string        `db:"progress_message"`
	RetryCount      int           `db:"retry_count"`
	MaxRetries      int           `db:"max_retries"`
	ScheduledAt     EpochTime     `db:"scheduled_at"`
	StartedAt       NullEpochTime `db:"started_at"`
	CompletedAt     NullEpochTime `db:"completed_at"`
	CreatedAt       EpochTime     `db:"created_at"`
	UpdatedAt       EpochTime     `db:"updated_at"`
}

// NSFWFlag is the image's own NSFW classification, a distinct value space
// from Device.NSFWPolicy (see package doc comment on NSFWPolicy).
type NSFWFlag int

const (
	NSFWUnknown NSFWFlag = iota
	NSFWSafe
	NSFWFlagged
)

// Image is the canonical record of one discovered asset.
type Image struct {
	ID              string        `db:"id"`
	SourceID        string        `db:"source_id"`
	WebsiteURL      string        `db:"website_url"`
	DownloadURL     string        `db:"download_url"`
	Checksum        string        `db:"checksum"`
	Width           int           `db:"width"`
	Height          int           `db:"height"`
	AspectRatio     float64       `db:"aspect_ratio"`
	Filesize        int64         `db:"filesize"`
	Format          string        `db:"format"`
	NSFW            NSFWFlag      `db:"nsfw"`
	Title           *string       `db:"title"`
	Author          *string       `db:"author"`
	AuthorURL       *string       `db:"author_url"`
	SourceCreatedAt NullEpochTime `db:"source_created_at"`
	CreatedAt       EpochTime     `db:"created_at"`
	UpdatedAt       EpochTime     `db:"updated_at"`
}

// DeviceImage is one materialization of an image onto a device's directory.
type DeviceImage struct {
	ID        string  `db:"id"`
	DeviceID  *string `db:"device_id"`
	ImageID   *string `db:"image_id"`
	LocalPath string  `db:"local_path"`
}
