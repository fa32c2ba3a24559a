package shared

import "time"

type AppConfig struct {
	Airis  AirisConfig  `mapstructure:"airis" validate:"required"`
	Sqlite SqliteConfig `mapstructure:"sqlite" validate:"required"`
	Twilio TwilioConfig `mapstructure:"twilio"`
	Google GoogleConfig `mapstructure:"google"`
}

type AirisConfig struct {
	Device   DeviceConfig   `mapstructure:"device" validate:"required"`
	Alert    AlertConfig    `mapstructure:"alert" validate:"required"`
	Dispatch DispatchConfig `mapstructure:"dispatch" validate:"required"`
	Listener ListenerConfig `mapstructure:"listener" validate:"required"`
	Cron     CronConfig     `mapstructure:"cron"`
}

type DeviceConfig struct {
	NamePrefix         string          `mapstructure:"namePrefix" validate:"required"`
	ServiceUUID        string          `mapstructure:"serviceUUID" validate:"required,uuid"`
	CharacteristicUUID string          `mapstructure:"characteristicUUID" validate:"required,uuid"`
	ConnectTimeout     time.Duration   `mapstructure:"connectTimeout" validate:"min=0"`
	EmergencyCooldown  time.Duration   `mapstructure:"emergencyCooldown" validate:"min=0"`
	Reconnect          ReconnectConfig `mapstructure:"reconnect"`
}

type ReconnectConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval" validate:"required_with=Enabled"`
	MaxRetries  int           `mapstructure:"maxRetries" validate:"min=0"`
	BaseBackoff time.Duration `mapstructure:"baseBackoff" validate:"min=0"`
}

type AlertConfig struct {
	SmsDelay        time.Duration `mapstructure:"smsDelay" validate:"min=0"`
	DispatchTimeout time.Duration `mapstructure:"dispatchTimeout" validate:"min=0"`
	Cooldown        time.Duration `mapstructure:"cooldown" validate:"min=0"`
	DefaultMessage  string        `mapstructure:"defaultMessage"`
	ProductName     string        `mapstructure:"productName" validate:"required"`
}

type DispatchConfig struct {
	Provider        string   `mapstructure:"provider" validate:"required,oneof=host twilio"`
	OpenCommand     []string `mapstructure:"openCommand"`
	FallbackCommand []string `mapstructure:"fallbackCommand"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone"`

	// HistoryRetention is how long alert history is kept, zero keeps it forever
	HistoryRetention time.Duration `mapstructure:"historyRetention" validate:"min=0"`
}

type ListenerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"required"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid"`
	FromNumber          string `mapstructure:"fromNumber"`
	DefaultRegion       string `mapstructure:"defaultRegion"`
	VoiceMessage        string `mapstructure:"voiceMessage"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	// Bucket, Prefix & SqliteBackupSchedule are only required once backups are enabled
	Bucket                    string      `mapstructure:"bucket"`
	Prefix                    string      `mapstructure:"prefix"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
}

// BackupEnabled reports whether the sqlite backup to google storage is switched on.
func (sc StorageConfig) BackupEnabled() bool {
	enabled, ok := sc.EnableSqliteBackupAndSync.(bool)
	return ok && enabled
}
