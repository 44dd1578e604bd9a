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
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// fetchCommands returns the command that runs exactly one fetch cycle and
// exits. Useful under an external scheduler (cron, systemd timer).
func fetchCommands(b *moebotInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "run a single fetch cycle and exit",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b.bot.RunOnce(ctx)
			log.Println("fetch cycle complete")
		},
	}

	return cmd
}
