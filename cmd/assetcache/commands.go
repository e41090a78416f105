package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/assetcache/cache"
	"github.com/meigma/assetcache/cache/disk"
)

func (a *app) installCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Fetch every manifest asset into the cache for the current version",
		Long: `Fetches every asset named by the manifest and stores it in the cache for
the current version. Install is all-or-nothing: if any asset cannot be
fetched, nothing is written and the command fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := a.openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			m, err := a.newManager(storage)
			if err != nil {
				return err
			}
			if err := m.Install(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "installed %d assets into %s\n", len(m.Manifest()), m.Version())
			return nil
		},
	}
}

func (a *app) activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Install the current version and remove caches from other versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := a.openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			m, err := a.newManager(storage)
			if err != nil {
				return err
			}
			if err := m.Install(cmd.Context()); err != nil {
				return err
			}
			removed, err := m.Activate(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintf(a.out, "removed %s\n", name)
			}
			fmt.Fprintf(a.out, "activated %s\n", m.Version())
			return nil
		},
	}
}

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List cache stores with entry counts and disk usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := a.openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			ctx := cmd.Context()
			names, err := storage.Keys(ctx)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(a.out, "no caches")
				return nil
			}

			// The current marker is best-effort: a missing manifest only hides it.
			current := ""
			if _, version, err := a.loadManifest(); err == nil {
				current = version
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tENTRIES\tSIZE")
			for _, name := range names {
				entries, size, err := describe(cmd, storage, name)
				if err != nil {
					return err
				}
				marker := ""
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", marker, name, entries, humanize.Bytes(uint64(size)))
			}
			return tw.Flush()
		},
	}
}

func describe(cmd *cobra.Command, storage *disk.Storage, name string) (int, int64, error) {
	st, err := storage.Open(cmd.Context(), name)
	if err != nil {
		return 0, 0, err
	}
	keys, err := st.Keys(cmd.Context())
	if err != nil {
		return 0, 0, err
	}
	size, err := storage.StoreSizeBytes(name)
	if err != nil {
		return 0, 0, err
	}
	return len(keys), size, nil
}

func (a *app) purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <name>",
		Short: "Delete one cache store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := a.openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			removed, err := storage.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: %s", cache.ErrNotFound, args[0])
			}
			fmt.Fprintf(a.out, "removed %s\n", args[0])
			return nil
		},
	}
}
