package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/pkg/jwt"
)

var issuerCmd = &cobra.Command{
	Use:   "issuer",
	Short: "Alta y consulta de emisores",
}

var issuerRegisterCmd = &cobra.Command{
	Use:   "register <issuer.json>",
	Short: "Registrar o actualizar un emisor",
	Long: `Lee los datos del emisor en JSON. Sin "id" se genera uno nuevo; con --company
se actualiza ese emisor. Un gateway_token vacío conserva el guardado.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in dto.RegisterIssuerRequest
		if err := readJSON(args[0], &in); err != nil {
			return err
		}
		if in.ID == "" {
			in.ID = companyID
		}
		out, err := svc.Companies.Register(cmd.Context(), in)
		if err != nil {
			return describe(err)
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var issuerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Mostrar el emisor (sin el token del gateway)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		out, err := svc.Companies.GetByID(cmd.Context(), companyID)
		if err != nil {
			return describe(err)
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var (
	tokenRole    string
	tokenUser    string
	tokenMinutes int
)

var tokenCmd = &cobra.Command{
	Use:         "token",
	Short:       "Generar un JWT para la API HTTP",
	Example:     `  fiscalctl token -c 6f1c... --role emissor --user integracao-erp`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"offline": "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		switch tokenRole {
		case "admin", "emissor", "consulta":
		default:
			return fmt.Errorf("rol desconocido: %q", tokenRole)
		}
		if cfg.JWT.Secret == "" {
			return errors.New("JWT_SECRET requerido")
		}
		minutes := tokenMinutes
		if minutes <= 0 {
			minutes = cfg.JWT.Expiration
		}
		grant := jwt.Grant{Operator: tokenUser, IssuerID: companyID, Role: tokenRole}
		tok, err := jwt.Generate(cfg.JWT.Secret, cfg.JWT.Issuer, grant, time.Duration(minutes)*time.Minute)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", "emissor", "rol: admin | emissor | consulta")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "fiscalctl", "operador que usará el token (claim sub)")
	tokenCmd.Flags().IntVar(&tokenMinutes, "expires", 0, "minutos de validez (por defecto JWT_EXPIRATION_MINUTES)")

	issuerCmd.AddCommand(issuerRegisterCmd, issuerShowCmd)
	rootCmd.AddCommand(issuerCmd, tokenCmd)
}
