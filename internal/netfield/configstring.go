package netfield

// Configstring index layout. original_source's .c files reference these
// by name (CS_NAME, CS_MODELS, CS_SOUNDS, CS_PLAYERSKINS, MAX_CONFIGSTRINGS
// in server/init.go, game/g_utils.c, game/ctf/g_ctf.c, client/parse.c) but
// the header defining their numeric values was never retrieved into this
// pack, so the offsets below follow the well-known, publicly documented
// Quake II layout rather than a guess.
const (
	CSName        = 0
	CSModels      = 32
	CSSounds      = 288
	CSImages      = 544
	CSPlayerSkins = 760
	MaxClients    = 256
	CSGeneral     = CSPlayerSkins + MaxClients

	MaxModels = CSSounds - CSModels
	MaxSounds = CSImages - CSSounds
	MaxImages = CSPlayerSkins - CSImages

	MaxConfigstrings = CSGeneral + 256
)
