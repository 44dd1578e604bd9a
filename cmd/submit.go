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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moebot-io/moebot/model"
)

// submitCommands returns the command that pushes a local image file through
// the delivery pipeline, outside any source or dedup tracking.
func submitCommands(b *moebotInstance) *cobra.Command {
	var tags string
	var author string

	cmd := &cobra.Command{
		Use:   "submit <image-file>",
		Short: "deliver a local image file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				log.Fatal(err)
			}

			asset := &model.Asset{
				SourceID:   model.GenerateSubmissionID(),
				SourceName: model.SourceManual,
				Payload:    payload,
				Tags:       strings.Fields(tags),
				Author:     author,
			}

			record, err := b.bot.DeliverDirect(context.Background(), asset)
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("delivered %s (channel reference %s)", record.CompositeID, record.ChannelReference)
		},
	}

	cmd.Flags().StringVar(&tags, "tags", "", "space-separated tags for the caption")
	cmd.Flags().StringVar(&author, "author", "", "author credit for the caption")

	return cmd
}
