// Package netchan implements the reliable/unreliable message channel:
// fragmentation, the svc_zpacket DEFLATE wrapper, and the wire-protocol
// opcode inventory shared by the frame assembler and the channel itself.
package netchan

// ServerOp enumerates the top-level server->client opcodes spec §6.1
// names. spec.md leaves their numeric values unspecified (symbolic names
// only); iota assigns them in the order §6.1 lists them.
type ServerOp uint8

const (
	SvcNop ServerOp = iota
	SvcDisconnect
	SvcReconnect
	SvcPrint
	SvcCenterprint
	SvcStufftext
	SvcServerdata
	SvcConfigstring
	SvcConfigstringstream
	SvcBaselinestream
	SvcSound
	SvcSpawnbaseline
	SvcTempEntity
	SvcMuzzleflash
	SvcMuzzleflash2
	SvcDownload
	SvcZdownload
	SvcZpacket
	SvcFrame
	SvcInventory
	SvcLayout
	SvcGamestate
	SvcSetting
)
