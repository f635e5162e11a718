package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/domain"
)

var issueCmd = &cobra.Command{
	Use:   "issue <request.json>",
	Short: "Emitir un documento (idempotente por referencia)",
	Long: `Lee el pedido de emisión en JSON (o "-" para stdin) y lo envía al gateway.
Repetir la emisión con la misma referencia devuelve el registro existente.`,
	Example: `  fiscalctl issue pedido-42.json -c 6f1c...
  cat pedido.json | fiscalctl issue - --store memory --issuer emisor.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		var in dto.IssueFiscalDocumentRequest
		if err := readJSON(args[0], &in); err != nil {
			return err
		}
		res := svc.Fiscal.Issue(cmd.Context(), companyID, in)
		return printResult(cmd, res, res.Error)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <reference>",
	Short: "Mostrar el registro almacenado, sin consultar al gateway",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		doc, err := svc.Fiscal.Get(cmd.Context(), companyID, args[0])
		if err != nil {
			return describe(err)
		}
		return printJSON(cmd.OutOrStdout(), doc)
	},
}

var pendingLimit, pendingOffset int

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Listar documentos en SUBMITTED_PENDING",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		page, err := svc.Fiscal.ListPending(cmd.Context(), companyID, dto.PageRequest{Limit: pendingLimit, Offset: pendingOffset})
		if err != nil {
			return describe(err)
		}
		return printJSON(cmd.OutOrStdout(), page)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <reference>",
	Short: "Consultar el estado en el gateway y actualizar el registro",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		res := svc.Fiscal.Refresh(cmd.Context(), companyID, args[0])
		return printResult(cmd, res, res.Error)
	},
}

var refreshPendingCmd = &cobra.Command{
	Use:   "refresh-pending",
	Short: "Refrescar todos los documentos pendientes del emisor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		results, err := svc.Fiscal.RefreshPending(cmd.Context(), companyID, pendingLimit)
		if err != nil && len(results) == 0 {
			return describe(err)
		}
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
		for _, r := range results {
			if r.Error != nil {
				return errFailed
			}
		}
		return nil
	},
}

var justification string

var cancelCmd = &cobra.Command{
	Use:     "cancel <reference>",
	Short:   "Cancelar un documento autorizado",
	Example: `  fiscalctl cancel pedido-42 -j "Pedido cancelado a pedido do cliente"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		res := svc.Fiscal.Cancel(cmd.Context(), companyID, args[0], justification)
		return printResult(cmd, res, res.Error)
	},
}

var correctionText string

var amendCmd = &cobra.Command{
	Use:   "amend <reference>",
	Short: "Registrar una carta de corrección",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		res := svc.Fiscal.Amend(cmd.Context(), companyID, args[0], correctionText)
		return printResult(cmd, res, res.Error)
	},
}

var protocolCmd = &cobra.Command{
	Use:   "protocol <reference>",
	Short: "Descargar el XML autorizado y mostrar chave, protocolo y cStat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		p, err := svc.Fiscal.Protocol(cmd.Context(), companyID, args[0])
		if err != nil {
			return describe(err)
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var previewOut string

var previewCmd = &cobra.Command{
	Use:   "preview <request.json>",
	Short: "Generar un PDF de vista previa (sin valor fiscal) sin llamar al gateway",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCompany(); err != nil {
			return err
		}
		var in dto.IssueFiscalDocumentRequest
		if err := readJSON(args[0], &in); err != nil {
			return err
		}
		pdf, err := svc.Fiscal.Preview(cmd.Context(), companyID, in)
		if err != nil {
			return describe(err)
		}
		out := previewOut
		if out == "" {
			out = "previa-" + in.Reference + ".pdf"
		}
		if err := os.WriteFile(out, pdf, 0o644); err != nil {
			return fmt.Errorf("escribir %s: %w", out, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

// describe antepone el código estable al mensaje.
func describe(err error) error {
	msg := err.Error()
	if fe, ok := domain.AsFiscalError(err); ok && fe.Message != "" {
		msg = fe.Message
		if len(fe.Fields) > 0 {
			msg += fmt.Sprintf(" %v", fe.Fields)
		}
	}
	return fmt.Errorf("%s: %s", domain.ErrorCode(err), msg)
}

func init() {
	pendingCmd.Flags().IntVarP(&pendingLimit, "limit", "n", 20, "máximo de documentos")
	pendingCmd.Flags().IntVar(&pendingOffset, "offset", 0, "documentos a saltar")
	refreshPendingCmd.Flags().IntVarP(&pendingLimit, "limit", "n", 20, "máximo de documentos")

	cancelCmd.Flags().StringVarP(&justification, "justification", "j", "", "justificación (15 a 255 caracteres)")
	_ = cancelCmd.MarkFlagRequired("justification")

	amendCmd.Flags().StringVarP(&correctionText, "text", "t", "", "texto de la corrección (hasta 1000 caracteres)")
	_ = amendCmd.MarkFlagRequired("text")

	previewCmd.Flags().StringVarP(&previewOut, "output", "o", "", "archivo PDF de salida (por defecto previa-<reference>.pdf)")

	rootCmd.AddCommand(issueCmd, showCmd, pendingCmd, refreshCmd, refreshPendingCmd,
		cancelCmd, amendCmd, protocolCmd, previewCmd)
}
