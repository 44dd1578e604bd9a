/*
Copyright 2025 Moebot Authors.

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

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moebot-io/moebot"
	"github.com/moebot-io/moebot/config"
	"github.com/moebot-io/moebot/internal/notification"
)

// CLI wraps the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// moebotInstance holds the initialized pipeline and its configuration for
// the subcommands to share.
type moebotInstance struct {
	bot *moebot.Moebot
	cnf *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the pipeline before any command
// executes.
func preRun(app *moebotInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("moebot.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		bot, err := moebot.NewMoebot()
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.bot = bot
		app.cnf = cnf

		return nil
	}
}

// NewCLI creates the command-line interface for moebot.
func NewCLI() *CLI {
	var configFile string
	b := &moebotInstance{}

	var rootCmd = &cobra.Command{
		Use:   "moebot",
		Short: "Image relay pipeline",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./moebot.json", "Configuration file for moebot")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(fetchCommands(b))
	rootCmd.AddCommand(submitCommands(b))

	return &CLI{cmd: rootCmd}
}

func (w CLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
