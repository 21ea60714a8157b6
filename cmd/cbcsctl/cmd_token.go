package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"acadcore/cbcs/pkg/jwt"
)

func newTokenCmd() *cobra.Command {
	var userID, role, departmentID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发调试用 Access Token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch role {
			case "admin", "staff", "student":
			default:
				return fmt.Errorf("不支持的角色 %q，可选 admin | staff | student", role)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(userID, role, departmentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "用户ID（学生为学生ID）")
	cmd.Flags().StringVar(&role, "role", "student", "角色")
	cmd.Flags().StringVar(&departmentID, "department", "", "部门ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
