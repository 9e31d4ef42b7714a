package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/platform/authz"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session creation and management",
	}
	cmd.AddCommand(sessionNewCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionSubmitCmd())
	cmd.AddCommand(sessionUploadCmd())
	cmd.AddCommand(sessionRmFileCmd())
	return cmd
}

// sessionNewCmd walks the three-step wizard on the terminal: details, then
// optional file attachments, then review and confirm.
func sessionNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <patient-id>",
		Short: "Create a session through the guided wizard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RouteSessionCreate); err != nil {
				return err
			}
			ctx := cmd.Context()

			doctors, err := a.users.Doctors(ctx)
			if err != nil {
				return err
			}
			if len(doctors) == 0 {
				return fmt.Errorf("no doctors available for assignment")
			}
			fmt.Println("Available doctors:")
			for i, d := range doctors {
				fmt.Printf("  %d) %s (%s)\n", i+1, d.FullName, d.UserID)
			}

			complaint, err := prompt("Chief complaint: ")
			if err != nil {
				return err
			}
			state, err := prompt("Current state description: ")
			if err != nil {
				return err
			}
			pick, err := prompt("Assign doctor (number): ")
			if err != nil {
				return err
			}
			idx := 0
			if _, err := fmt.Sscanf(pick, "%d", &idx); err != nil || idx < 1 || idx > len(doctors) {
				return fmt.Errorf("invalid doctor selection %q", pick)
			}

			w := session.NewWizard(a.sessions, a.logger)
			draft, err := w.SubmitDetails(ctx, session.Create{
				PatientID:               args[0],
				SessionType:             session.TypeNewProblem,
				AssignedDoctorID:        doctors[idx-1].UserID,
				ChiefComplaint:          complaint,
				CurrentStateDescription: state,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Draft %s created\n", draft.SessionID)

			for {
				// Files step: attach until an empty path is entered. Review
				// re-enters this step when the nurse goes back.
				for {
					path, err := prompt("Attach file path (empty to continue): ")
					if err != nil {
						return err
					}
					if path == "" {
						break
					}
					fileType, err := prompt("File type (xray/ct/lab_result/ecg/report/other): ")
					if err != nil {
						return err
					}
					if err := uploadFromPath(w, cmd, path, session.FileType(fileType)); err != nil {
						fmt.Printf("  upload failed: %v\n", err)
						continue
					}
					fmt.Println("  attached")
				}
				if err := w.Next(); err != nil {
					return err
				}

				// Review step.
				current, err := a.sessions.Refresh(ctx, w.SessionID())
				if err != nil {
					return err
				}
				printSession(current)
				choice, err := prompt("Submit for analysis? (y = submit, b = back to files, N = leave draft): ")
				if err != nil {
					return err
				}
				if strings.EqualFold(choice, "b") {
					if err := w.Back(); err != nil {
						return err
					}
					continue
				}
				if !strings.EqualFold(choice, "y") {
					id := w.Abandon()
					fmt.Printf("Left as draft %s\n", id)
					return nil
				}
				submitted, err := w.Confirm(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Session %s submitted (%s)\n", submitted.SessionID, submitted.SessionStatus)
				return nil
			}
		},
	}
}

func uploadFromPath(w *session.Wizard, cmd *cobra.Command, path string, fileType session.FileType) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = w.Upload(cmd.Context(), filepath.Base(path), f, fileType)
	return err
}

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RoutePatientProfile); err != nil {
				return err
			}
			s, err := a.sessions.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSession(s)
			return nil
		},
	}
}

func sessionSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <session-id>",
		Short: "Submit a draft for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RouteSessionCreate); err != nil {
				return err
			}
			s, err := a.sessions.Submit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Session %s is now %s\n", s.SessionID, s.SessionStatus)
			return nil
		},
	}
}

func sessionUploadCmd() *cobra.Command {
	var fileType string
	cmd := &cobra.Command{
		Use:   "upload <session-id> <path>",
		Short: "Attach a file to a draft session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RouteSessionCreate); err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			uploaded, err := a.sessions.UploadFile(cmd.Context(), args[0], filepath.Base(args[1]), f, session.FileType(fileType))
			if err != nil {
				return err
			}
			fmt.Printf("Attached %s as %s\n", uploaded.FileName, uploaded.FileID)
			return nil
		},
	}
	cmd.Flags().StringVar(&fileType, "type", string(session.FileOther), "file type (xray/ct/lab_result/ecg/report/other)")
	return cmd
}

func sessionRmFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-file <session-id> <file-id>",
		Short: "Remove an attachment from a draft session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RouteSessionCreate); err != nil {
				return err
			}
			if err := a.sessions.DeleteFile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("File removed")
			return nil
		},
	}
}

func printSession(s *session.Session) {
	fmt.Printf("%s  %s (%s)\n", s.SessionID, s.PatientName, s.PatientID)
	fmt.Printf("  Status: %s, type %s, opened %s\n", s.SessionStatus, s.SessionType, s.SessionDate.Format("2006-01-02 15:04"))
	fmt.Printf("  Complaint: %s\n", s.ChiefComplaint)
	fmt.Printf("  State: %s\n", s.CurrentStateDescription)
	fmt.Printf("  Assigned to %s, created by %s\n", orDash(s.AssignedDoctorName), s.NurseName)
	if s.ParentSessionID != "" {
		fmt.Printf("  Follow-up of %s\n", s.ParentSessionID)
	}
	if s.ChildSessionID != "" {
		fmt.Printf("  Spawned follow-up %s\n", s.ChildSessionID)
	}
	if len(s.UploadedFiles) > 0 {
		fmt.Println("  Files:")
		for _, f := range s.UploadedFiles {
			lock := ""
			if !f.CanDelete {
				lock = " (locked)"
			}
			fmt.Printf("    %s  %s  %s%s\n", f.FileID, f.FileType, f.FileName, lock)
		}
	}
	if s.VLMInitialOutput != nil {
		fmt.Printf("  Analysis (%s): %s\n", s.VLMInitialOutput.ModelVersion, s.VLMInitialOutput.Findings)
	}
	if s.VLMErrorMessage != "" {
		fmt.Printf("  Analysis failed: %s\n", s.VLMErrorMessage)
	}
	if s.Diagnosis != nil {
		fmt.Printf("  Diagnosis: %s (%s)\n", s.Diagnosis.PrimaryDiagnosis, s.Diagnosis.Severity)
		for _, m := range s.Diagnosis.Medications {
			fmt.Printf("    %s %s for %s\n", m.Name, m.Dosage, m.Duration)
		}
	}
}
