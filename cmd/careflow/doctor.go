package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/domain/doctor"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/platform/authz"
)

func queueCmd() *cobra.Command {
	var mine, watch bool
	var status string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List sessions awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RouteDoctorQueue); err != nil {
				return err
			}
			ctx := cmd.Context()
			scope := doctor.ScopeAll
			if mine {
				scope = doctor.ScopeMine
			}

			listing, err := a.doctors.Queue(ctx, session.Status(status), scope)
			if err != nil {
				return err
			}
			printQueue(listing)
			if !watch {
				return nil
			}

			// Watch mode: reprint on every poll until interrupted.
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			defer signal.Stop(sig)

			cancel := a.doctors.WatchQueue(ctx, session.Status(status), scope, a.cfg.QueuePollInterval(), func(listing []session.Summary) {
				fmt.Println()
				printQueue(listing)
			})
			defer cancel()
			<-sig
			return nil
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only sessions assigned to me")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling and reprinting")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func printQueue(listing []session.Summary) {
	if len(listing) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPATIENT\tSTATUS\tCOMPLAINT\tWAITING SINCE")
	for _, s := range listing {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.SessionID, s.PatientName, s.SessionStatus, s.ChiefComplaint, s.SessionDate.Format("15:04 Jan 2"))
	}
	w.Flush()
}

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <session-id>",
		Short: "Open a session for review",
		Long: "Opens the session (claiming it if unclaimed) and enters an interactive\n" +
			"loop: show, chat <question>, diagnose, close, quit.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RouteSessionReview); err != nil {
				return err
			}
			ctx := cmd.Context()

			review, err := a.doctors.NewReview(ctx, args[0])
			if err != nil {
				return err
			}
			cancel := review.Watch(ctx, a.cfg.SessionPollInterval(), func(s *session.Session) {
				fmt.Printf("\n[update] session is now %s\n", s.SessionStatus)
			})
			defer cancel()

			printSession(review.Session())
			for {
				line, err := prompt("review> ")
				if err != nil {
					return err
				}
				fields := strings.Fields(line)
				if len(fields) == 0 {
					continue
				}
				switch fields[0] {
				case "show":
					printSession(review.Session())
				case "chat":
					question := strings.TrimSpace(strings.TrimPrefix(line, "chat"))
					if question == "" {
						fmt.Println("usage: chat <question>")
						continue
					}
					msg, err := review.Ask(ctx, question)
					if err != nil {
						fmt.Printf("chat failed: %v\n", err)
						continue
					}
					fmt.Println(msg.Answer())
				case "diagnose":
					if err := runDiagnose(review, cmd); err != nil {
						fmt.Printf("diagnose failed: %v\n", err)
					}
				case "close":
					if !review.CanClose() {
						fmt.Println("cannot close: record a diagnosis first")
						continue
					}
					res, err := review.Close(ctx)
					if err != nil {
						fmt.Printf("close failed: %v\n", err)
						continue
					}
					fmt.Printf("Session closed (%s)\n", res.Session.SessionStatus)
					if res.FollowUpSession != nil {
						fmt.Printf("Follow-up draft %s created\n", res.FollowUpSession.SessionID)
					}
					return nil
				case "quit", "exit":
					return nil
				default:
					fmt.Println("commands: show, chat <question>, diagnose, close, quit")
				}
			}
		},
	}
}

// runDiagnose collects the diagnosis interactively and saves it together
// with the pending-tests decision.
func runDiagnose(review *doctor.Review, cmd *cobra.Command) error {
	primary, err := prompt("Primary diagnosis: ")
	if err != nil {
		return err
	}
	severity, err := prompt("Severity (mild/moderate/severe): ")
	if err != nil {
		return err
	}
	recommendations, err := prompt("Recommendations: ")
	if err != nil {
		return err
	}

	var meds []session.Medication
	for {
		name, err := prompt("Medication name (empty to finish): ")
		if err != nil {
			return err
		}
		if name == "" {
			break
		}
		dosage, err := prompt("  Dosage: ")
		if err != nil {
			return err
		}
		duration, err := prompt("  Duration: ")
		if err != nil {
			return err
		}
		instructions, err := prompt("  Instructions: ")
		if err != nil {
			return err
		}
		meds = append(meds, session.Medication{Name: name, Dosage: dosage, Duration: duration, Instructions: instructions})
	}

	var tests *session.PendingTests
	need, err := prompt("Require tests before follow-up? (y/N): ")
	if err != nil {
		return err
	}
	if strings.EqualFold(need, "y") {
		raw, err := prompt("Tests (comma-separated): ")
		if err != nil {
			return err
		}
		instructions, err := prompt("Instructions to patient: ")
		if err != nil {
			return err
		}
		tests = &session.PendingTests{
			Required:              true,
			TestsRequested:        splitList(raw),
			InstructionsToPatient: instructions,
		}
	}

	if err := review.SaveDiagnosis(cmd.Context(), session.Diagnosis{
		PrimaryDiagnosis: primary,
		Severity:         session.Severity(severity),
		Medications:      meds,
		Recommendations:  recommendations,
	}, tests); err != nil {
		return err
	}
	fmt.Println("Diagnosis saved")
	return nil
}
