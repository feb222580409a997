package i18n

// Template variables must line up with the en-US catalog so the same
// error metadata renders in every locale.
var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		// Admission errors
		CodeDurationOutOfRange:  "A duração deve ficar entre {{.MinDuration}} e {{.MaxDuration}} blocos",
		CodeSessionLimitReached: "Você já tem {{.MaxActive}} atividades em andamento",
		CodeAssetBusy:           "Este bichinho já está ocupado com outra atividade",

		// Input errors
		CodeKindInvalid:       "Tipo de atividade desconhecido",
		CodeDifficultyInvalid: "Nível de dificuldade desconhecido",
		CodeScoreOutOfRange:   "A pontuação deve ficar entre 0 e {{.MaxScore}}",
		CodeOwnerEmpty:        "A conta do dono é obrigatória",
		CodeAssetInvalid:      "Um bichinho precisa ser selecionado",

		// Authorization errors
		CodeNotAssetOwner:   "Você não é o dono deste bichinho",
		CodeNotSessionOwner: "Apenas o dono da sessão pode fazer isso",

		// State errors
		CodeSessionNotFound:       "Sessão de atividade não encontrada",
		CodeSessionFinished:       "Esta atividade já foi encerrada",
		CodeSessionNotYetComplete: "Esta atividade ainda não terminou ({{.Remaining}} blocos restantes)",
		CodeSessionStatusInvalid:  "A sessão não está em um estado válido para esta operação",

		// Storage errors
		CodeNotFound: "Registro não encontrado",

		// Collaborator errors
		CodeBeaconUnavailable: "A aleatoriedade está temporariamente indisponível",
		CodeCreditFailed:      "O pagamento da recompensa falhou",
	},
}
