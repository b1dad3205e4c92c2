package app

import "github.com/matheus3301/matrixtui/internal/nav"

// execute runs a command produced by a key press.
func (c *Coordinator) execute(cmd nav.Command) {
	st := c.state
	switch cmd := cmd.(type) {
	case nil:
	case nav.MoveRoom:
		st.Rooms.MoveSelection(cmd.Delta)
	case nav.MoveFavorite:
		c.moveFavorite(cmd.Delta)
	case nav.OpenSelectedRoom:
		c.openRoomAt(st.Rooms.Selected())
	case nav.OpenRoom:
		c.openRoomAt(cmd.Index)
	case nav.ToggleFavorite:
		c.toggleFavorite()

	case nav.SelectPrevMessage:
		if st.Rooms.SelectPrev() {
			c.loadOlder()
		}
	case nav.SelectNextMessage:
		st.Rooms.SelectNext()
	case nav.SelectFirstMessage:
		st.Rooms.SelectFirst()
	case nav.SelectLastMessage:
		st.Rooms.SelectLast()
	case nav.ClearSelection:
		st.Rooms.ClearSelection()
	case nav.OpenMessageActions:
		c.openMessageActions()
	case nav.StartReply:
		c.startReply()
	case nav.PickReaction:
		c.pickReaction()

	case nav.SendMessage:
		c.sendMessage(cmd)
	case nav.Typing:
		c.typing(cmd.Active)
	case nav.SendReaction:
		c.react(cmd)
	case nav.EditMessage:
		c.editMessage(cmd)
	case nav.DeleteMessage:
		c.deleteMessage(cmd)

	case nav.OpenRoomEditor:
		c.openRoomEditor()
	case nav.LoadRoomInfo:
		c.loadRoomInfo(cmd)
	case nav.LoadProfile:
		c.loadProfile(cmd)

	case nav.SubmitLogin:
		c.submitLogin(cmd)
	case nav.CreateRoom:
		c.createRoom(cmd)
	case nav.EditRoom:
		c.editRoom(cmd)
	case nav.LeaveRoom:
		c.leaveRoom(cmd.Gen, cmd.RoomID, cmd.AccountID, false)
	case nav.DeleteRoom:
		c.leaveRoom(cmd.Gen, cmd.RoomID, cmd.AccountID, true)
	case nav.UpdateProfile:
		c.updateProfile(cmd)
	case nav.RecoverKeys:
		c.recoverKeys(cmd)

	case nav.ReconnectAccount:
		c.reconnect(cmd.AccountID)
	case nav.RemoveAccount:
		c.removeAccount(cmd.AccountID)
	case nav.SetTheme:
		c.setTheme(cmd.Name)
	case nav.SetSort:
		c.setSort(cmd.Index)
	case nav.ClearCache:
		c.clearCache()

	case nav.StartVerification:
		c.startVerification(cmd.Gen, cmd.AccountID)
	case nav.AcceptVerification:
		c.acceptVerification()
	case nav.ConfirmVerification:
		c.confirmVerification()
	case nav.RejectVerification:
		c.rejectVerification()
	case nav.CancelVerification:
		c.cancelVerification()
		st.Verification = nil
	case nav.DismissVerification:
		c.dismissVerification()

	default:
		c.logger.Sugar().Debugf("unhandled command %T", cmd)
	}
}
