package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/platform/authz"
)

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Patient registration and lookup",
	}
	cmd.AddCommand(patientSearchCmd())
	cmd.AddCommand(patientShowCmd())
	cmd.AddCommand(patientCreateCmd())
	cmd.AddCommand(patientPortfolioCmd())
	return cmd
}

func patientSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search patients by name, id, or national id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RoutePatientSearch); err != nil {
				return err
			}
			results, err := a.patients.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No patients found")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDOB\tPHONE")
			for _, p := range results {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.PatientID, p.FullName, p.DateOfBirth, p.Phone)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", patient.DefaultSearchLimit, "maximum results")
	return cmd
}

func patientShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <patient-id>",
		Short: "Show one patient record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RoutePatientProfile); err != nil {
				return err
			}
			p, err := a.patients.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printPatient(p)
			return nil
		},
	}
}

func patientCreateCmd() *cobra.Command {
	var in patient.Create
	var allergies, conditions string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RoutePatientSearch); err != nil {
				return err
			}
			if allergies != "" {
				in.Allergies = splitList(allergies)
			}
			if conditions != "" {
				in.ChronicConditions = splitList(conditions)
			}
			p, err := a.patients.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s as %s\n", p.FullName, p.PatientID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Gender, "gender", "", "gender")
	cmd.Flags().StringVar(&in.NationalID, "national-id", "", "national id (immutable)")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Address, "address", "", "postal address")
	cmd.Flags().StringVar(&in.BloodType, "blood-type", "", "blood type")
	cmd.Flags().StringVar(&allergies, "allergies", "", "comma-separated allergies")
	cmd.Flags().StringVar(&conditions, "conditions", "", "comma-separated chronic conditions")
	return cmd
}

func patientPortfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio <patient-id>",
		Short: "Show a patient with their full session history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RoutePatientProfile); err != nil {
				return err
			}
			pf, err := a.patients.Portfolio(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printPatient(&pf.Patient)
			if len(pf.Sessions) == 0 {
				fmt.Println("\nNo sessions on record")
				return nil
			}
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tDATE\tSTATUS\tCOMPLAINT\tDOCTOR")
			for _, s := range pf.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.SessionID, s.SessionDate.Format("2006-01-02 15:04"), s.SessionStatus, s.ChiefComplaint, s.AssignedDoctorName)
			}
			return w.Flush()
		},
	}
}

func printPatient(p *patient.Patient) {
	fmt.Printf("%s  %s\n", p.PatientID, p.FullName)
	fmt.Printf("  Born %s, %s, blood type %s\n", p.DateOfBirth, p.Gender, orDash(p.BloodType))
	fmt.Printf("  National ID %s, phone %s\n", p.NationalID, orDash(p.Phone))
	if len(p.Allergies) > 0 {
		fmt.Printf("  Allergies: %s\n", strings.Join(p.Allergies, ", "))
	}
	if len(p.ChronicConditions) > 0 {
		fmt.Printf("  Chronic conditions: %s\n", strings.Join(p.ChronicConditions, ", "))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
