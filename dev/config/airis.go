package config

// AIRIS_YML is the config written when none exists yet
const AIRIS_YML = `airis:
  device:
    namePrefix: "AirMouse"
    serviceUUID: "0000ffe0-0000-1000-8000-00805f9b34fb"
    characteristicUUID: "0000ffe1-0000-1000-8000-00805f9b34fb"
    connectTimeout: 30s
    # Ignore repeated emergency signals from the device within this window, 0 keeps every one
    emergencyCooldown: 0s
    reconnect:
      enabled: true
      interval: 10s
      maxRetries: 10
      baseBackoff: 2s
  alert:
    smsDelay: 500ms
    dispatchTimeout: 15s
    cooldown: 0s
    defaultMessage: "🚨 Emergency alert from Airis-SH device! Please help immediately."
    productName: "Airis-SH"
  dispatch:
    # 'host' opens tel:, sms: & mailto: links on this machine, 'twilio' calls & texts through Twilio
    provider: host
    openCommand: []
    fallbackCommand: []
  listener:
    host: "127.0.0.1"
    port: 3000
  cron:
    timeZone: "UTC"
    historyRetention: 2160h

sqlite:
  # Pass phrase used to encrypt the settings db, change it before adding contacts
  # or set AIRIS_SQLITE_PASSPHRASE
  passPhrase: "airis-change-me"

twilio:
  accountSid:
  authToken:
  messagingServiceSid:
  fromNumber:
  defaultRegion: "US"
  voiceMessage:

google:
  applicationCredentials:
  storage:
    bucket:
    prefix:
    sqliteBackupSchedule: "*/30 * * * *"
    # Needs bucket & prefix once set to true
    enableSqliteBackupAndSync: false
`
