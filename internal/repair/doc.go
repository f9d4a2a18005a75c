// Package repair removes unreachable devices from broken scenes.
//
// A repair never touches the platform before a backup of the scene's
// device membership has been persisted. Removals are issued one action at
// a time; a failed removal is logged and the rest continue, and the
// repair as a whole still reports success. Restoring from a backup is not
// supported: Restore records a failed full_restore entry and returns
// false.
package repair
