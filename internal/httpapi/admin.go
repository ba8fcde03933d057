package httpapi

import (
	"strconv"

	"github.com/MrEthical07/authkit"
	"github.com/labstack/echo/v4"
)

func (s *Server) listSettings(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.Settings(c.Request().Context(), cl, c.Param("id"))
	return s.respond(c, res, err)
}

func (s *Server) getSetting(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.Setting(c.Request().Context(), cl, c.Param("id"), c.Param("key"))
	return s.respond(c, res, err)
}

func (s *Server) putSetting(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.UpdateSetting(c.Request().Context(), cl, c.Param("id"), c.Param("key"), req.Value, token(c))
	return s.respond(c, res, err)
}

func (s *Server) deleteSetting(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.DeleteSetting(c.Request().Context(), cl, c.Param("id"), c.Param("key"), token(c))
	return s.respond(c, res, err)
}

func (s *Server) resetSettings(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.ResetUserSettings(c.Request().Context(), cl, c.Param("id"), token(c))
	return s.respond(c, res, err)
}

/*
====================================
ADMIN
====================================
*/

func (s *Server) listUsers(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	res, err := s.engine.ListUsers(c.Request().Context(), cl, offset, limit)
	return s.respond(c, res, err)
}

func (s *Server) createUser(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	t := authkit.AccountNormal
	if req.AccountType != "" {
		parsed, ok := authkit.ParseAccountType(req.AccountType)
		if !ok {
			return badRequest(c, "unknown account type")
		}
		t = parsed
	}
	res, err := s.engine.CreateUser(c.Request().Context(), cl, authkit.AdminCreateInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		AccountType: t,
	}, token(c))
	return s.respond(c, res, err)
}

func (s *Server) inviteUser(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.InviteUser(c.Request().Context(), cl, req.Value, token(c))
	return s.respond(c, res, err)
}

func (s *Server) suspendUser(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req suspensionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.UpdateSuspensionStatus(c.Request().Context(), cl, c.Param("id"), req.Days, token(c))
	return s.respond(c, res, err)
}

func (s *Server) changeAccountType(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req accountTypeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	t, ok := authkit.ParseAccountType(req.AccountType)
	if !ok {
		return badRequest(c, "unknown account type")
	}
	res, err := s.engine.ChangeAccountType(c.Request().Context(), cl, c.Param("id"), t, token(c))
	return s.respond(c, res, err)
}

// deleteUser soft-deletes unless ?hard=true.
func (s *Server) deleteUser(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var res *authkit.Result
	if hard, _ := strconv.ParseBool(c.QueryParam("hard")); hard {
		res, err = s.engine.HardDeleteUser(ctx, cl, c.Param("id"), token(c))
	} else {
		res, err = s.engine.SoftDeleteUser(ctx, cl, c.Param("id"), token(c))
	}
	return s.respond(c, res, err)
}

func (s *Server) restoreUser(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.RestoreUser(c.Request().Context(), cl, c.Param("id"), token(c))
	return s.respond(c, res, err)
}
