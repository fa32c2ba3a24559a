/*
Copyright © 2024 Airis-SH

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	devConfig "github.com/airis-sh/airis/dev/config"
	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/settings"
	"github.com/airis-sh/airis/shared"
	"github.com/airis-sh/airis/utils"
	"github.com/airis-sh/airis/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const CONFIG_NAME = "airis.yml"

var (
	cfgFile string
	config  *viper.Viper

	isDevEnv  bool
	isDemoEnv bool

	yellow       = color.New(color.FgYellow).SprintFunc()
	red          = color.New(color.FgRed).SprintFunc()
	green        = color.New(color.FgGreen).SprintFunc()
	warningLabel = yellow("Warning:")
)

// rootCmd represents the base command when called without any subcommands
var rootCmd *cobra.Command

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd = createRootCmd()
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "airis",
		Short: `airis is the control center for the Airis-SH emergency device.

It keeps a bluetooth link to the wearable, and when the device raises an
emergency it calls, texts and emails your emergency contacts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.airis/airis.yml)")
	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
	cmd.PersistentFlags().BoolVarP(&isDemoEnv, "demo", "", false, "use a simulated device and log alerts instead of sending them")

	cmd.AddCommand(
		createMonitorCmd(),
		createContactsCmd(),
		createTemplateCmd(),
		createSosCmd(),
	)

	return cmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config = viper.New()
	setConfigDefaults(config)

	if cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(cfgFile)
	} else {
		configDir, err := defaultConfigDir()
		cobra.CheckErr(err)

		// If config file is not found, create one from the template
		configFilePath := filepath.Join(configDir, CONFIG_NAME)
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			err = os.WriteFile(configFilePath, []byte(devConfig.AIRIS_YML), 0600)
			cobra.CheckErr(err)
		}

		config.SetConfigFile(configFilePath)
	}

	// Secrets can live in the environment instead of the config file.
	// FYI: The env var overrides whatever is in the config file
	config.BindEnv("twilio.authToken", "TWILIO_AUTH_TOKEN")
	config.BindEnv("google.applicationCredentials", "GOOGLE_APPLICATION_CREDENTIALS")
	config.BindEnv("sqlite.passPhrase", "AIRIS_SQLITE_PASSPHRASE")

	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", config.ConfigFileUsed())
	} else {
		fmt.Fprintln(os.Stderr, warningLabel, err)
	}
}

func setConfigDefaults(config *viper.Viper) {
	config.SetDefault("airis.device.namePrefix", "AirMouse")
	config.SetDefault("airis.device.serviceUUID", "0000ffe0-0000-1000-8000-00805f9b34fb")
	config.SetDefault("airis.device.characteristicUUID", "0000ffe1-0000-1000-8000-00805f9b34fb")
	config.SetDefault("airis.device.connectTimeout", "30s")
	config.SetDefault("airis.device.reconnect.interval", "10s")
	config.SetDefault("airis.device.reconnect.baseBackoff", "2s")
	config.SetDefault("airis.alert.smsDelay", "500ms")
	config.SetDefault("airis.alert.dispatchTimeout", "15s")
	config.SetDefault("airis.alert.productName", "Airis-SH")
	config.SetDefault("airis.alert.defaultMessage", "🚨 Emergency alert from Airis-SH device! Please help immediately.")
	config.SetDefault("airis.dispatch.provider", "host")
	config.SetDefault("airis.listener.host", "127.0.0.1")
	config.SetDefault("airis.listener.port", 3000)
	config.SetDefault("airis.cron.timeZone", "UTC")
	config.SetDefault("twilio.defaultRegion", "US")
}

// defaultConfigDir is $HOME/.airis in production and ./dev/config in dev mode
func defaultConfigDir() (string, error) {
	if isDevEnv {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, "dev", "config"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(home, ".airis")
	return configDir, utils.CreateDirIfNotExist(configDir)
}

// appConfig decodes and validates the loaded config
func appConfig() (shared.AppConfig, error) {
	appCfg := shared.AppConfig{}

	if err := config.Unmarshal(&appCfg); err != nil {
		return appCfg, formattedError("unable to decode %s: %v", config.ConfigFileUsed(), err)
	}

	if err := appCfg.Validate(); err != nil {
		return appCfg, formattedError("invalid config in %s: %v", config.ConfigFileUsed(), err)
	}

	return appCfg, nil
}

// dataDir is where the settings db lives, next to the config file
func dataDir() string {
	return filepath.Dir(config.ConfigFileUsed())
}

// openStore loads the config and opens the settings db for one-shot commands
func openStore() (shared.AppConfig, *settings.Store, error) {
	appCfg, err := appConfig()
	if err != nil {
		return appCfg, nil, err
	}

	if err := models.AutoMigrate(appCfg.Sqlite.PassPhrase, dataDir()); err != nil {
		return appCfg, nil, err
	}

	store, err := settings.NewStore()
	return appCfg, store, err
}

func formattedError(format string, a ...interface{}) error {
	return fmt.Errorf(red(format), a...)
}
