package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bananaslides/internal/client"
	"bananaslides/internal/domain"
	"bananaslides/internal/retry"
)

var (
	submitProject    string
	submitSettings   domain.ConversionSettings
	submitExtractor  string
	submitInpaint    string
	submitStyle      string
	submitResolution string
	submitFormat     string
	submitNotify     string
	submitMaxDepth   int
	submitWait       bool

	waitInterval   string
	waitTimeout    string
	waitRetries    int
	waitRetryDelay string
	waitAwaiting   bool
	waitQuiet      bool

	confirmErase []string

	fetchOutput string
)

var submitCmd = &cobra.Command{
	Use:   "submit page_id=image_key...",
	Short: "Create a conversion task from page image keys",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, err := parsePages(args)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		settings := submitSettings
		settings.ExtractorMethod = domain.ExtractorMethod(submitExtractor)
		settings.InpaintMethod = domain.InpaintMethod(submitInpaint)
		settings.TextStyleMode = domain.TextStyleMode(submitStyle)
		settings.OutputResolution = domain.OutputResolution(submitResolution)
		settings.ImageFormat = domain.ImageFormat(submitFormat)
		if submitMaxDepth >= 0 {
			settings.MaxDepth = &submitMaxDepth
		}

		task, err := c.CreateConversion(cmd.Context(), &client.CreateRequest{
			ProjectID:   submitProject,
			Pages:       pages,
			Settings:    settings,
			NotifyEmail: submitNotify,
		})
		if err != nil {
			return err
		}
		fmt.Println(task.ID)

		if !submitWait {
			return nil
		}
		return waitFor(cmd, c, task.ID.String())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status TASK_ID",
	Short: "Show the current status of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		task, err := c.GetConversion(cmd.Context(), id)
		if errors.Is(err, domain.ErrTaskNotFound) {
			fmt.Printf("Task:     %s\nStatus:   %s (not visible yet)\n", id, domain.TaskPending)
			return nil
		}
		if err != nil {
			return err
		}
		printTask(task)
		return nil
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait TASK_ID",
	Short: "Poll a task until it completes, fails, or pauses for verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return waitFor(cmd, c, args[0])
	},
}

func waitFor(cmd *cobra.Command, c *client.Client, rawID string) error {
	id, err := parseTaskID(rawID)
	if err != nil {
		return err
	}
	interval, err := parseDuration("interval", waitInterval)
	if err != nil {
		return err
	}
	timeout, err := parseDuration("timeout", waitTimeout)
	if err != nil {
		return err
	}
	delay, err := parseDuration("retry-delay", waitRetryDelay)
	if err != nil {
		return err
	}

	opts := client.PollOptions{
		Interval:       interval,
		Timeout:        timeout,
		Retry:          retry.Policy{MaxAttempts: waitRetries, BaseDelay: delay},
		StopOnAwaiting: waitAwaiting,
	}
	var bar *taskBar
	if !waitQuiet {
		bar = newTaskBar()
		opts.OnUpdate = bar.Update
	}

	task, err := c.Wait(cmd.Context(), id, opts)
	if bar != nil {
		bar.Finish()
	}
	if errors.Is(err, client.ErrPollTimeout) {
		if task != nil {
			printTask(task)
		}
		return fmt.Errorf("gave up after %s; the task keeps running on the server", timeout)
	}
	if err != nil {
		return err
	}

	printTask(task)
	if task.Status == domain.TaskFailed {
		return fmt.Errorf("task %s failed", task.ID)
	}
	return nil
}

var confirmCmd = &cobra.Command{
	Use:   "confirm TASK_ID",
	Short: "Confirm verification and resume rendering",
	Long: `Confirm resumes a task that is awaiting verification. Without --erase the
server-side verification session decides which elements are regenerated.
Each --erase page_id=id1,id2 replaces the erase set of one page; pages not
named are kept entirely.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		sets, err := parseEraseSets(confirmErase)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		task, err := c.Confirm(cmd.Context(), id, sets)
		if err != nil {
			return err
		}
		printTask(task)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Inspect and edit a task's verification session",
}

var verifyShowCmd = &cobra.Command{
	Use:   "show TASK_ID",
	Short: "Print the keep/erase map and per-page stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		view, err := c.Verification(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

var verifyToggleCmd = &cobra.Command{
	Use:   "toggle TASK_ID PAGE_ID ELEMENT_ID",
	Short: "Flip one element between keep and erase",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		view, err := c.Toggle(cmd.Context(), id, args[1], args[2])
		if err != nil {
			return err
		}
		return printJSON(view.Stats[args[1]])
	},
}

var verifyBulkCmd = &cobra.Command{
	Use:   "bulk TASK_ID PAGE_ID keep|erase",
	Short: "Set every element of a page",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		status := domain.ElementStatus(args[2])
		if !domain.ValidElementStatuses[status] {
			return fmt.Errorf("status must be keep or erase, got %q", args[2])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		view, err := c.BulkSet(cmd.Context(), id, args[1], status)
		if err != nil {
			return err
		}
		return printJSON(view.Stats[args[1]])
	},
}

var verifyResetCmd = &cobra.Command{
	Use:   "reset TASK_ID PAGE_ID",
	Short: "Restore a page to the extractor's recommendation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		view, err := c.Reset(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		return printJSON(view.Stats[args[1]])
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch TASK_ID",
	Short: "Download the slide bundle of a completed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		data, name, err := c.DownloadArtifact(cmd.Context(), id)
		if err != nil {
			return err
		}

		out := fetchOutput
		if out == "" {
			out = name
		} else if info, err := os.Stat(out); err == nil && info.IsDir() {
			out = filepath.Join(out, name)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitProject, "project", "", "project id recorded on the task")
	f.StringVar(&submitExtractor, "extractor", "", "extractor method: hybrid, fast, offline (server default when empty)")
	f.StringVar(&submitInpaint, "inpaint", "", "inpaint method: generative, hybrid, fast, offline")
	f.StringVar(&submitStyle, "style", "", "text style mode: default, inferred-visual, inferred-ai")
	f.StringVar(&submitResolution, "resolution", "", "background resolution: original, 1080p, 2k, 4k")
	f.StringVar(&submitFormat, "format", "", "background image format: png, jpeg")
	f.BoolVar(&submitSettings.ManualConfirmation, "manual", false, "pause for verification after extraction")
	f.IntVar(&submitMaxDepth, "max-depth", -1, "levels of nested image analysis, 0 to 3 (server default when negative)")
	f.StringVar(&submitNotify, "notify", "", "email address notified when the task finishes")
	f.BoolVar(&submitWait, "wait", false, "wait for the task after submitting")

	for _, cmd := range []*cobra.Command{submitCmd, waitCmd} {
		wf := cmd.Flags()
		wf.StringVar(&waitInterval, "interval", "2s", "poll interval")
		wf.StringVar(&waitTimeout, "timeout", "30m", "overall wait timeout")
		wf.IntVar(&waitRetries, "retries", 5, "attempts per status read before giving up")
		wf.StringVar(&waitRetryDelay, "retry-delay", "1s", "base backoff delay between failed status reads")
		wf.BoolVar(&waitAwaiting, "stop-on-awaiting", true, "return when the task pauses for verification")
		wf.BoolVarP(&waitQuiet, "quiet", "q", false, "no progress bar")
	}

	confirmCmd.Flags().StringArrayVar(&confirmErase, "erase", nil, "page_id=id1,id2 erase set (repeatable)")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file or directory")

	verifyCmd.AddCommand(verifyShowCmd, verifyToggleCmd, verifyBulkCmd, verifyResetCmd)
}
