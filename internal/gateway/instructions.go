package gateway

// ImageGenModelID designates the image-generation model. The system
// instruction is selected solely on whether the call targets it.
const ImageGenModelID = "gemini-2.5-flash-image"

const imageGenInstruction = "Kamu adalah Genz Art, AI yang mampu membuat dan mengedit gambar. " +
	"Jika pengguna meminta gambar, buatlah gambar tersebut. Jawablah selalu dalam Bahasa Indonesia."

const assistantInstruction = "Kamu adalah GenzAI, asisten AI yang ramah dan membantu. " +
	"Kamu bisa melihat gambar, menonton video, dan membaca dokumen PDF/Teks jika pengguna memberikannya. " +
	"Saat menganalisis video atau dokumen, perhatikan detail penting. " +
	"Jawablah selalu dalam Bahasa Indonesia yang luwes."

func instructionFor(modelID string) string {
	if modelID == ImageGenModelID {
		return imageGenInstruction
	}
	return assistantInstruction
}
