package cmd

import (
	"errors"
	"fmt"

	"github.com/fancyinnovations/fancyspaces-client/pkg/tools"
	"github.com/fancyinnovations/fancyspaces-client/pkg/versions"
	"github.com/spf13/cobra"
)

// errNoResult is returned when the service logged a failure instead of a result
var errNoResult = errors.New("no result, see log output for details")

var (
	filterPlatform string
	filterChannel  string
	downloadFile   string
	downloadDir    string
)

var versionsCmd = &cobra.Command{
	Use:     "versions",
	Aliases: []string{"v"},
	Short:   "Query versions of a space",
}

var versionsListCmd = &cobra.Command{
	Use:   "list <space-id>",
	Short: "List versions of a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		list, ok := client.Versions().GetVersions(cmd.Context(), args[0], filterPlatform, filterChannel)
		if !ok {
			return errNoResult
		}
		return tools.Print(cmd.OutOrStdout(), list, Cfg.Output.Format)
	},
}

var versionsGetCmd = &cobra.Command{
	Use:   "get <space-id> <version-id>",
	Short: "Show a single version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		v, ok := client.Versions().GetVersion(cmd.Context(), args[0], args[1])
		if !ok {
			return errNoResult
		}
		return tools.Print(cmd.OutOrStdout(), v, Cfg.Output.Format)
	},
}

var versionsLatestCmd = &cobra.Command{
	Use:   "latest <space-id>",
	Short: "Show the latest version of a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		v, ok := client.Versions().GetLatestVersion(cmd.Context(), args[0], filterPlatform, filterChannel)
		if !ok {
			return errNoResult
		}
		return tools.Print(cmd.OutOrStdout(), v, Cfg.Output.Format)
	},
}

var versionsDownloadsCmd = &cobra.Command{
	Use:   "downloads <space-id> <version-id>",
	Short: "Show the download count of a version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		n, ok := client.Versions().GetDownloadCount(cmd.Context(), args[0], args[1])
		if !ok {
			return errNoResult
		}
		return tools.Print(cmd.OutOrStdout(), map[string]uint64{"downloads": n}, Cfg.Output.Format)
	},
}

var versionsDownloadCmd = &cobra.Command{
	Use:   "download <space-id> <version-id>",
	Short: "Download the files of a version",
	Long:  `Download all files of a version, or a single one with --file, into --dir.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		v, ok := client.Versions().GetVersion(cmd.Context(), args[0], args[1])
		if !ok {
			return errNoResult
		}

		files := v.Files
		if downloadFile != "" {
			f, found := v.File(downloadFile)
			if !found {
				return fmt.Errorf("version %s has no file %q", v.ID, downloadFile)
			}
			files = []versions.VersionFile{f}
		}
		if len(files) == 0 {
			return fmt.Errorf("version %s has no files", v.ID)
		}

		paths := make([]string, 0, len(files))
		for _, f := range files {
			path, err := client.Downloader().DownloadTo(cmd.Context(), f, downloadDir)
			if err != nil {
				return fmt.Errorf("download %s: %w", f.Name, err)
			}
			paths = append(paths, path)
		}
		return tools.Print(cmd.OutOrStdout(), paths, Cfg.Output.Format)
	},
}

func init() {
	for _, c := range []*cobra.Command{versionsListCmd, versionsLatestCmd} {
		c.Flags().StringVarP(&filterPlatform, "platform", "p", "", "only versions for this platform")
		c.Flags().StringVarP(&filterChannel, "channel", "c", "", "only versions in this channel")
	}

	versionsDownloadCmd.Flags().StringVarP(&downloadFile, "file", "f", "", "download only this file")
	versionsDownloadCmd.Flags().StringVarP(&downloadDir, "dir", "d", ".", "destination directory")

	versionsCmd.AddCommand(versionsListCmd, versionsGetCmd, versionsLatestCmd, versionsDownloadsCmd, versionsDownloadCmd)
	RootCmd.AddCommand(versionsCmd)
}
