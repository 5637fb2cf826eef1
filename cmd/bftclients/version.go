/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"

	"github.com/hyperledger-labs/bftclients/common/metadata"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print bftclients version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return errors.New("trailing args detected")
			}
			fmt.Fprint(cmd.OutOrStdout(), metadata.GetVersionInfo("bftclients"))
			return nil
		},
	}
}
